package cell

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// Registry 格口注册表：进程内唯一的共享可变状态
// 读返回值快照；写在锁内整体完成，不存在单个格口字段的撕裂读
type Registry struct {
	mu    sync.RWMutex
	cells []*Cell // 下标 = 编号-1
	byID  map[string]int
	gens  []uint64 // 每格门状态代数：开门命令与门跳变时递增
	now   func() time.Time
}

// NewRegistry 按静态配置创建全部格口（初始为 available、门关闭）
func NewRegistry(layout Layout) *Registry {
	r := &Registry{
		cells: make([]*Cell, 0, len(layout.Cells)),
		byID:  make(map[string]int, len(layout.Cells)),
		gens:  make([]uint64, len(layout.Cells)),
		now:   time.Now,
	}
	for i, lc := range layout.Cells {
		c := &Cell{
			ID:     IDFor(lc.Number),
			Number: lc.Number,
			Size:   lc.Size,
			Status: StatusAvailable,
		}
		r.cells = append(r.cells, c)
		r.byID[c.ID] = i
	}
	return r
}

func snapshot(c *Cell) Cell {
	out := *c
	if c.Weight != nil {
		w := *c.Weight
		out.Weight = &w
	}
	return out
}

// ResolveID 接受 "cell-5" 或 "5" 两种写法
func ResolveID(raw string) string {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		return IDFor(n)
	}
	return raw
}

// Count 格口总数
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cells)
}

// Get 按ID查询
func (r *Registry) Get(id string) (Cell, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byID[ResolveID(id)]
	if !ok {
		return Cell{}, false
	}
	return snapshot(r.cells[i]), true
}

// GetByNumber 按物理编号查询
func (r *Registry) GetByNumber(number int) (Cell, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if number < 1 || number > len(r.cells) {
		return Cell{}, false
	}
	return snapshot(r.cells[number-1]), true
}

// List 全部格口（按编号升序）
func (r *Registry) List() []Cell {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Cell, 0, len(r.cells))
	for _, c := range r.cells {
		out = append(out, snapshot(c))
	}
	return out
}

// FindAvailable 查询 available 格口，size 为空表示不限尺寸
// 不做尺寸升级，升级策略由调用方多次调用实现
func (r *Registry) FindAvailable(size Size) []Cell {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Cell, 0)
	for _, c := range r.cells {
		if c.Status != StatusAvailable {
			continue
		}
		if size != "" && c.Size != size {
			continue
		}
		out = append(out, snapshot(c))
	}
	return out
}

// DoorStates 当前缓存的门状态（下标 = 编号-1）
func (r *Registry) DoorStates() []bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]bool, len(r.cells))
	for i, c := range r.cells {
		out[i] = c.DoorOpen
	}
	return out
}

// Generations 当前门状态代数快照（下标 = 编号-1）
// 轮询发出查询前取一次，应答到达时交给 ApplyDoorStatesSince 剔除期间已被改写的格口
func (r *Registry) Generations() []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]uint64, len(r.gens))
	copy(out, r.gens)
	return out
}

// update 在写锁内修改单个格口
func (r *Registry) update(id string, fn func(c *Cell) error) (Cell, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.byID[ResolveID(id)]
	if !ok {
		return Cell{}, ErrCellNotFound
	}
	c := r.cells[i]
	if err := fn(c); err != nil {
		return snapshot(c), err
	}
	return snapshot(c), nil
}

// MarkOpened 开门命令成功：status=open、doorOpen=true，预约随之失效
// 不标记 occupied，需等轮询观察到门重新关闭。门状态发生跳变时返回事件。
func (r *Registry) MarkOpened(id string) (Cell, *DoorEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.byID[ResolveID(id)]
	if !ok {
		return Cell{}, nil, ErrCellNotFound
	}
	c := r.cells[i]
	var ev *DoorEvent
	if !c.DoorOpen {
		ev = r.event(c, true)
	}
	c.Status = StatusOpen
	c.DoorOpen = true
	c.ReservedFor = ""
	r.gens[i]++
	return snapshot(c), ev, nil
}

// Reserve 预约：要求当前为 available 且订单号非空
func (r *Registry) Reserve(id, orderRef string) (Cell, error) {
	return r.update(id, func(c *Cell) error {
		if strings.TrimSpace(orderRef) == "" {
			return &PreconditionError{CellID: c.ID, Status: c.Status, Op: "reserve with empty order id"}
		}
		if c.Status != StatusAvailable {
			return &PreconditionError{CellID: c.ID, Status: c.Status, Op: "reserve"}
		}
		c.Status = StatusReserved
		c.ReservedFor = orderRef
		return nil
	})
}

// Release 释放（幂等，总是成功）：清除占用、预约与物品标记
func (r *Registry) Release(id string) (Cell, error) {
	return r.update(id, func(c *Cell) error {
		c.Status = StatusAvailable
		c.ReservedFor = ""
		c.HasItems = false
		return nil
	})
}

// MarkOccupied 标记已占用（模拟器初始化与人工纠正使用）
func (r *Registry) MarkOccupied(id string) (Cell, error) {
	return r.update(id, func(c *Cell) error {
		if c.DoorOpen {
			return &PreconditionError{CellID: c.ID, Status: c.Status, Op: "occupy open cell"}
		}
		c.Status = StatusOccupied
		c.ReservedFor = ""
		c.HasItems = true
		return nil
	})
}

// MarkError 标记故障（门关闭状态下才允许，保持 open⇒doorOpen 不变量）
func (r *Registry) MarkError(id string) (Cell, error) {
	return r.update(id, func(c *Cell) error {
		if c.Status == StatusOpen {
			return &PreconditionError{CellID: c.ID, Status: c.Status, Op: "mark error"}
		}
		c.Status = StatusError
		c.ReservedFor = ""
		return nil
	})
}

// SetWeight 记录最近一次称重
func (r *Registry) SetWeight(id string, grams int) (Cell, error) {
	return r.update(id, func(c *Cell) error {
		w := grams
		c.Weight = &w
		return nil
	})
}

// ApplyDoor 应用一次门状态观测，仅在跳变时返回事件
// 门关闭且格口处于 open：进入 occupied（开门→放/取物→关门）
func (r *Registry) ApplyDoor(number int, open bool) (*DoorEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if number < 1 || number > len(r.cells) {
		return nil, false
	}
	return r.applyLocked(number-1, open)
}

// ApplyDoorStates 批量应用门位图（下标 = 编号-1），多余项忽略；返回全部跳变事件
func (r *Registry) ApplyDoorStates(states []bool) []DoorEvent {
	return r.ApplyDoorStatesSince(states, nil)
}

// ApplyDoorStatesSince 同 ApplyDoorStates，但跳过代数与 gens 不一致的格口：
// 这些格口在查询发出后已被开门命令或其他观测改写，位图对它们已过期。
// gens 为 nil 时不做过滤。
func (r *Registry) ApplyDoorStatesSince(states []bool, gens []uint64) []DoorEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var events []DoorEvent
	for i, open := range states {
		if i >= len(r.cells) {
			break
		}
		if gens != nil && (i >= len(gens) || gens[i] != r.gens[i]) {
			continue
		}
		if ev, ok := r.applyLocked(i, open); ok {
			events = append(events, *ev)
		}
	}
	return events
}

// SeedDoorStates 以设备当前门状态初始化缓存，不产生事件
// 仅调整 doorOpen；open 状态的格口不会被置为关闭
func (r *Registry) SeedDoorStates(states []bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, open := range states {
		if i >= len(r.cells) {
			break
		}
		c := r.cells[i]
		if c.Status == StatusOpen && !open {
			continue
		}
		if c.DoorOpen != open {
			c.DoorOpen = open
			r.gens[i]++
		}
	}
}

func (r *Registry) applyLocked(i int, open bool) (*DoorEvent, bool) {
	c := r.cells[i]
	if c.DoorOpen == open {
		return nil, false
	}
	c.DoorOpen = open
	r.gens[i]++
	if !open && c.Status == StatusOpen {
		c.Status = StatusOccupied
		c.ReservedFor = ""
		c.HasItems = true
	}
	return r.event(c, open), true
}

func (r *Registry) event(c *Cell, open bool) *DoorEvent {
	return &DoorEvent{
		CellID:     c.ID,
		CellNumber: c.Number,
		DoorOpen:   open,
		Timestamp:  r.now().UTC(),
	}
}

package cell

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Layout 静态硬件配置：格口数量与尺寸映射
type Layout struct {
	Cells []LayoutCell `yaml:"cells"`
}

// LayoutCell 单个格口的静态配置
type LayoutCell struct {
	Number int  `yaml:"number"`
	Size   Size `yaml:"size"`
}

// DefaultLayout KZ004 标准 16 格配置：1-2 S, 3-6 M, 7-10 L, 11-16 XL
func DefaultLayout() Layout {
	return UniformLayout(16)
}

// UniformLayout 按标准比例生成 count 个格口（超过 16 的格口为 XL）
func UniformLayout(count int) Layout {
	l := Layout{Cells: make([]LayoutCell, 0, count)}
	for n := 1; n <= count; n++ {
		l.Cells = append(l.Cells, LayoutCell{Number: n, Size: defaultSize(n)})
	}
	return l
}

func defaultSize(n int) Size {
	switch {
	case n <= 2:
		return SizeS
	case n <= 6:
		return SizeM
	case n <= 10:
		return SizeL
	default:
		return SizeXL
	}
}

// LoadLayout 从 YAML 文件加载格口配置
//
//	cells:
//	  - {number: 1, size: S}
//	  - {number: 2, size: M}
func LoadLayout(path string) (Layout, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, fmt.Errorf("read layout: %w", err)
	}
	var l Layout
	if err := yaml.Unmarshal(b, &l); err != nil {
		return Layout{}, fmt.Errorf("parse layout: %w", err)
	}
	if err := l.Validate(); err != nil {
		return Layout{}, err
	}
	return l, nil
}

// Validate 校验编号从 1 开始连续且尺寸合法
func (l *Layout) Validate() error {
	if len(l.Cells) == 0 {
		return fmt.Errorf("layout has no cells")
	}
	sort.Slice(l.Cells, func(i, j int) bool { return l.Cells[i].Number < l.Cells[j].Number })
	for i := range l.Cells {
		c := &l.Cells[i]
		if c.Number != i+1 {
			return fmt.Errorf("layout cell numbers must be contiguous from 1, got %d at position %d", c.Number, i+1)
		}
		sz, err := ParseSize(string(c.Size))
		if err != nil {
			return fmt.Errorf("cell %d: %w", c.Number, err)
		}
		c.Size = sz
	}
	return nil
}

// Count 格口总数
func (l Layout) Count() int { return len(l.Cells) }

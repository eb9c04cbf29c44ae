package app

import (
	"fmt"
	"os"

	"github.com/google/uuid"
)

// InstanceID 网关实例ID：优先 LOCKER_INSTANCE_ID，否则 locker-{hostname}-{uuid前8位}
func InstanceID() string {
	if id := os.Getenv("LOCKER_INSTANCE_ID"); id != "" {
		return id
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("locker-%s-%s", hostname, uuid.New().String()[:8])
}

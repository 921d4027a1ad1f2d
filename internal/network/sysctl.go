package network

import (
	"os"
	"strings"
)

// DefaultSystemController is the default RealSystemController instance.
var DefaultSystemController SystemController = &RealSystemController{}

// RealSystemController is a concrete implementation of SystemController using os functions.
type RealSystemController struct {
	// Root replaces /proc/sys when set.
	Root string
}

func (r *RealSystemController) path(key string) string {
	if strings.HasPrefix(key, "/") {
		return key
	}
	root := r.Root
	if root == "" {
		root = "/proc/sys"
	}
	return root + "/" + strings.ReplaceAll(key, ".", "/")
}

// ReadSysctl reads a sysctl value. key is either an absolute path or the
// dotted form, e.g. net.ipv4.ip_forward.
func (r *RealSystemController) ReadSysctl(key string) (string, error) {
	data, err := os.ReadFile(r.path(key))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// WriteSysctl writes a sysctl value.
func (r *RealSystemController) WriteSysctl(key, value string) error {
	return os.WriteFile(r.path(key), []byte(value), 0644)
}

// IsNotExist checks if an error indicates that a file or directory does not exist.
func (r *RealSystemController) IsNotExist(err error) bool {
	return os.IsNotExist(err)
}

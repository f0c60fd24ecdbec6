package recurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const virtualPrefix = "virtual-"

// ErrInvalidVirtualID 表示虚拟 id 格式错误
var ErrInvalidVirtualID = errors.New("invalid virtual occurrence id")

// VirtualID builds the synthetic key of a virtual occurrence:
// virtual-{parentID}-{YYYY-MM-DD}. No other code should build these.
func VirtualID(parentID uint, date string) string {
	return fmt.Sprintf("%s%d-%s", virtualPrefix, parentID, date)
}

// IsVirtualID 判断 id 是否为虚拟日期的格式
func IsVirtualID(id string) bool {
	_, _, err := ParseVirtualID(id)
	return err == nil
}

// ParseVirtualID 拆解 VirtualID 生成的 id
func ParseVirtualID(id string) (uint, string, error) {
	rest, ok := strings.CutPrefix(id, virtualPrefix)
	if !ok || len(rest) < len(DateLayout)+2 {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidVirtualID, id)
	}

	date := rest[len(rest)-len(DateLayout):]
	head := rest[:len(rest)-len(DateLayout)]
	rawParent, ok := strings.CutSuffix(head, "-")
	if !ok || rawParent == "" {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidVirtualID, id)
	}

	parentID, err := strconv.ParseUint(rawParent, 10, 32)
	if err != nil || parentID == 0 {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidVirtualID, id)
	}
	if _, err := ParseDate(date); err != nil {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidVirtualID, id)
	}

	return uint(parentID), date, nil
}

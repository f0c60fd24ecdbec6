package recurrence

import (
	"strconv"

	"github.com/samber/mo"
)

// Instance 是对账时需要的已落地实例字段
type Instance struct {
	ID       uint
	ParentID uint
	DueDate  string
}

// Slot is one reconciled occurrence of a parent: either backed by a
// materialized Instance or virtual.
type Slot struct {
	ParentID uint
	Date     string
	Instance mo.Option[Instance]
}

// IsVirtual 表示该日期尚无实例
func (s Slot) IsVirtual() bool {
	return s.Instance.IsAbsent()
}

// Key is the instance id for materialized slots and the virtual id otherwise.
func (s Slot) Key() string {
	if inst, ok := s.Instance.Get(); ok {
		return strconv.FormatUint(uint64(inst.ID), 10)
	}
	return VirtualID(s.ParentID, s.Date)
}

// Reconcile 把 parentID 的每个投影日期与已有实例配对。其他父条目的实例
// 会被忽略，重复日期只保留一个，输出顺序与 dates 一致。
func Reconcile(parentID uint, dates []string, instances []Instance) []Slot {
	byDate := make(map[string]Instance, len(instances))
	for _, inst := range instances {
		if inst.ParentID != parentID {
			continue
		}
		if _, dup := byDate[inst.DueDate]; dup {
			continue
		}
		byDate[inst.DueDate] = inst
	}

	slots := make([]Slot, 0, len(dates))
	emitted := make(map[string]struct{}, len(dates))
	for _, date := range dates {
		if _, dup := emitted[date]; dup {
			continue
		}
		emitted[date] = struct{}{}

		slot := Slot{ParentID: parentID, Date: date, Instance: mo.None[Instance]()}
		if inst, ok := byDate[date]; ok {
			slot.Instance = mo.Some(inst)
		}
		slots = append(slots, slot)
	}
	return slots
}

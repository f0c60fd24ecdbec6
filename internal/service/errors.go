package service

import "errors"

var (
	// ErrItemNotFound 在指定条目不存在时返回
	ErrItemNotFound = errors.New("item not found")
	// ErrInvalidKind 在类型不是 task/todo 时返回
	ErrInvalidKind = errors.New("invalid item kind")
	// ErrInvalidDate 在日期不是 YYYY-MM-DD 时返回
	ErrInvalidDate = errors.New("invalid date")
	// ErrInvalidRecurrence 在重复规则配置异常时返回
	ErrInvalidRecurrence = errors.New("invalid recurrence configuration")
	// ErrNotRecurring 在对非重复条目执行实例化时返回
	ErrNotRecurring = errors.New("item is not recurring")
	// ErrNotAnOccurrence 在日期不属于重复规则时返回
	ErrNotAnOccurrence = errors.New("date is not an occurrence")
	// ErrInvalidInput 在必填字段缺失时返回
	ErrInvalidInput = errors.New("invalid input")
)

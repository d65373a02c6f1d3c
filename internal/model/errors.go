package model

import "errors"

// ErrNotFound 要更新或递增的记录不存在
var ErrNotFound = errors.New("record not found")

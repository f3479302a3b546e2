package audit

import (
	"encoding/json"
	"time"
)

// Actions recorded by the kernel.
const (
	ActionAddItem    = "ADD_ITEM"
	ActionModifyItem = "MODIFY_ITEM"
	ActionDeleteItem = "DELETE_ITEM"
	ActionAddRel     = "ADD_REL"
	ActionDeleteRel  = "DELETE_REL"
	ActionLogin      = "LOGIN"
	ActionLogout     = "LOGOUT"
)

type AuditLog struct {
	Timestamp time.Time       `json:"timestamp"`
	Actor     string          `json:"actor"`
	OwnPaths  string          `json:"own_paths"`
	Action    string          `json:"action"`
	TargetID  string          `json:"target_id"`
	Detail    json.RawMessage `json:"detail,omitempty"`
}

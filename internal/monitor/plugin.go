package monitor

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

const startTimeKey = "contactops:query_start"

// Plugin adapts a Monitor to GORM's plugin interface so interception is
// a declared capability of the storage client, not a runtime patch.
// Every execution path (create/query/update/delete/row/raw) passes
// through the single Record interception point.
type Plugin struct {
	monitor *Monitor
}

func NewPlugin(m *Monitor) *Plugin {
	return &Plugin{monitor: m}
}

func (p *Plugin) Name() string { return "contactops:monitor" }

// Initialize registers before/after callbacks around each of GORM's
// built-in execution phases.
func (p *Plugin) Initialize(db *gorm.DB) error {
	var firstErr error
	reg := func(err error) {
		if firstErr == nil && err != nil {
			firstErr = err
		}
	}

	cb := db.Callback()
	reg(cb.Create().Before("gorm:create").Register(p.Name()+":before_create", p.before))
	reg(cb.Create().After("gorm:create").Register(p.Name()+":after_create", p.after))
	reg(cb.Query().Before("gorm:query").Register(p.Name()+":before_query", p.before))
	reg(cb.Query().After("gorm:query").Register(p.Name()+":after_query", p.after))
	reg(cb.Update().Before("gorm:update").Register(p.Name()+":before_update", p.before))
	reg(cb.Update().After("gorm:update").Register(p.Name()+":after_update", p.after))
	reg(cb.Delete().Before("gorm:delete").Register(p.Name()+":before_delete", p.before))
	reg(cb.Delete().After("gorm:delete").Register(p.Name()+":after_delete", p.after))
	reg(cb.Row().Before("gorm:row").Register(p.Name()+":before_row", p.before))
	reg(cb.Row().After("gorm:row").Register(p.Name()+":after_row", p.after))
	reg(cb.Raw().Before("gorm:raw").Register(p.Name()+":before_raw", p.before))
	reg(cb.Raw().After("gorm:raw").Register(p.Name()+":after_raw", p.after))
	return firstErr
}

func (p *Plugin) before(db *gorm.DB) {
	db.InstanceSet(startTimeKey, time.Now())
}

func (p *Plugin) after(db *gorm.DB) {
	v, ok := db.InstanceGet(startTimeKey)
	if !ok {
		return
	}
	start, ok := v.(time.Time)
	if !ok {
		return
	}

	sql := db.Statement.SQL.String()
	if db.Dialector != nil && len(db.Statement.Vars) > 0 {
		sql = db.Dialector.Explain(sql, db.Statement.Vars...)
	}

	execErr := db.Error
	if errors.Is(execErr, gorm.ErrRecordNotFound) {
		execErr = nil
	}
	p.monitor.Record(sql, time.Since(start), execErr)
}

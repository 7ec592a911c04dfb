package database

import (
	"fmt"

	"github.com/samber/oops"
	"gorm.io/gorm"
)

// oopsPlugin wraps every gorm error with oops and tags it "db".
type oopsPlugin struct{}

func NewOopsPlugin() gorm.Plugin {
	return &oopsPlugin{}
}

func (p oopsPlugin) Name() string {
	return "snip-oops"
}

type gormHookFunc func(tx *gorm.DB)

type gormRegister interface {
	Register(name string, fn func(*gorm.DB)) error
}

func (p oopsPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		callback gormRegister
		name     string
	}{
		{cb.Create().After("gorm:create"), "after:create"},
		{cb.Query().After("gorm:query"), "after:select"},
		{cb.Delete().After("gorm:delete"), "after:delete"},
		{cb.Update().After("gorm:update"), "after:update"},
		{cb.Row().After("gorm:row"), "after:row"},
		{cb.Raw().After("gorm:raw"), "after:raw"},
	}

	var firstErr error
	for _, h := range hooks {
		if err := h.callback.Register("oops:"+h.name, p.after()); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("callback register %s failed: %w", h.name, err)
		}
	}
	return firstErr
}

func (p oopsPlugin) after() gormHookFunc {
	return func(tx *gorm.DB) {
		if tx.Error != nil && !IsDBError(tx.Error) {
			tx.Error = oops.Tags("db").Wrap(ErrorDetails(tx.Error))
		}
	}
}

package log

import (
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Component 嵌入到长生命周期组件中，持有带组件名的 Logger。
// 零值可用，绑定之前使用全局 Logger。
type Component struct {
	logger atomic.Pointer[MLogger]
}

// Bind 从全局 Logger 派生出带组件名与附加字段的 Logger 并绑定。
func (c *Component) Bind(name string, fields ...zap.Field) *MLogger {
	l := With(append([]zap.Field{FieldComponent(name)}, fields...)...)
	c.logger.Store(l)
	return l
}

// BindRated 同 Bind，并把 Logger 挂到限速分组 group 上，供 Rated* 系列方法使用。
func (c *Component) BindRated(name, group string, creditPerSecond, maxBalance float64, fields ...zap.Field) *MLogger {
	l := With(append([]zap.Field{FieldComponent(name)}, fields...)...).WithRateGroup(group, creditPerSecond, maxBalance)
	c.logger.Store(l)
	return l
}

func (c *Component) Logger() *MLogger {
	if l := c.logger.Load(); l != nil {
		return l
	}
	return With()
}

package log

import (
	"go.uber.org/zap"
)

const (
	FieldNameModule    = "module"
	FieldNameComponent = "component"
	FieldNameEndpoint  = "endpoint"
	FieldNameStage     = "stage"
)

// FieldModule 返回一个包含模块名的 zap 字段。
func FieldModule(module string) zap.Field {
	return zap.String(FieldNameModule, module)
}

// FieldComponent 返回一个包含组件名的 zap 字段。
func FieldComponent(component string) zap.Field {
	return zap.String(FieldNameComponent, component)
}

// FieldEndpoint 返回一个包含对端地址的 zap 字段。
func FieldEndpoint(endpoint string) zap.Field {
	return zap.String(FieldNameEndpoint, endpoint)
}

// FieldStage 返回一个标记处理阶段的 zap 字段。
func FieldStage(stage string) zap.Field {
	return zap.String(FieldNameStage, stage)
}

// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package merr

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Code 返回给定错误对应的错误码。
func Code(err error) int32 {
	if err == nil {
		return 0
	}

	cause := errors.Cause(err)
	switch specificErr := cause.(type) {
	case relayError:
		return specificErr.code()

	default:
		if errors.Is(specificErr, context.Canceled) {
			return CanceledCode
		} else if errors.Is(specificErr, context.DeadlineExceeded) {
			return TimeoutCode
		} else {
			return errUnexpected.code()
		}
	}
}

func IsRetryableErr(err error) bool {
	if err, ok := errors.Cause(err).(relayError); ok {
		return err.retriable
	}

	return false
}

func IsCanceledOrTimeout(err error) bool {
	return errors.IsAny(err, context.Canceled, context.DeadlineExceeded)
}

func GetErrorType(err error) ErrorType {
	if merr, ok := errors.Cause(err).(relayError); ok {
		return merr.errType
	}

	return SystemError
}

// Service 相关错误封装。
func WrapErrServiceNotReady(role string, state string, msg ...string) error {
	err := wrapFieldsWithDesc(ErrServiceNotReady,
		state,
		value("role", role),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrServiceInternal(reason string, msg ...string) error {
	err := wrapFieldsWithDesc(ErrServiceInternal, reason)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// Relay 监听相关错误封装。
func WrapErrRelayBind(addr string, cause error) error {
	return wrapFieldsWithDesc(ErrRelayBind, causeString(cause), value("addr", addr))
}

func WrapErrRelayAccept(cause error) error {
	return wrapFieldsWithDesc(ErrRelayAccept, causeString(cause))
}

func WrapErrRelayStopped(msg ...string) error {
	err := error(ErrRelayStopped)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrRelayAlreadyStarted(addr string) error {
	return wrapFields(ErrRelayAlreadyStarted, value("addr", addr))
}

// Peer 会话相关错误封装。
func WrapErrPeerIO(endpoint string, cause error) error {
	return wrapFieldsWithDesc(ErrPeerIO, causeString(cause), value("endpoint", endpoint))
}

func WrapErrPeerClosed(endpoint string) error {
	return wrapFields(ErrPeerClosed, value("endpoint", endpoint))
}

// Connector 相关错误封装。
func WrapErrConnectionRefused(addr string, cause error) error {
	return wrapFieldsWithDesc(ErrConnectionRefused, causeString(cause), value("addr", addr))
}

func WrapErrConnectorIO(addr string, cause error) error {
	return wrapFieldsWithDesc(ErrConnectorIO, causeString(cause), value("addr", addr))
}

func WrapErrConnectorState(expected, actual string, msg ...string) error {
	err := wrapFields(ErrConnectorState, value("expected", expected), value("actual", actual))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrSendFailed(endpoint string, cause error) error {
	return wrapFieldsWithDesc(ErrSendFailed, causeString(cause), value("endpoint", endpoint))
}

// 行协议相关错误封装。
func WrapErrLineInvalid(reason string) error {
	return wrapFieldsWithDesc(ErrLineInvalid, reason)
}

func WrapErrLineTooLong(size, limit int) error {
	return wrapFields(ErrLineTooLong, bound("size", size, 0, limit))
}

// Parameter 相关错误封装。
func WrapErrParameterInvalid[T any](expected, actual T, msg ...string) error {
	err := wrapFields(ErrParameterInvalid,
		value("expected", expected),
		value("actual", actual),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrParameterInvalidRange[T any](lower, upper, actual T, msg ...string) error {
	err := wrapFields(ErrParameterInvalid,
		bound("value", actual, lower, upper),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrParameterMissing[T any](param T, msg ...string) error {
	err := wrapFields(ErrParameterMissing,
		value("missing_param", param),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func causeString(cause error) string {
	if cause == nil {
		return "<nil>"
	}
	return cause.Error()
}

func wrapFields(err relayError, fields ...errorField) error {
	for i := range fields {
		err.msg += fmt.Sprintf("[%s]", fields[i].String())
	}
	err.detail = err.msg
	return err
}

func wrapFieldsWithDesc(err relayError, desc string, fields ...errorField) error {
	for i := range fields {
		err.msg += fmt.Sprintf("[%s]", fields[i].String())
	}
	err.msg += ": " + desc
	err.detail = err.msg
	return err
}

type errorField interface {
	String() string
}

type valueField struct {
	name  string
	value any
}

func value(name string, value any) valueField {
	return valueField{
		name,
		value,
	}
}

func (f valueField) String() string {
	return fmt.Sprintf("%s=%v", f.name, f.value)
}

type boundField struct {
	name  string
	value any
	lower any
	upper any
}

func bound(name string, value, lower, upper any) boundField {
	return boundField{
		name,
		value,
		lower,
		upper,
	}
}

func (f boundField) String() string {
	return fmt.Sprintf("%v out of range %v <= %s <= %v", f.value, f.lower, f.name, f.upper)
}

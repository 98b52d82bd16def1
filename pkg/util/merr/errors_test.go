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
	"io"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"
)

type ErrSuite struct {
	suite.Suite
}

func (s *ErrSuite) TestCode() {
	err := WrapErrPeerIO("127.0.0.1:5000", io.ErrUnexpectedEOF)
	errors.Wrap(err, "failed to read line")
	s.ErrorIs(err, ErrPeerIO)
	s.Equal(Code(ErrPeerIO), Code(err))
	s.Equal(TimeoutCode, Code(context.DeadlineExceeded))
	s.Equal(CanceledCode, Code(context.Canceled))
	s.Equal(errUnexpected.errCode, Code(errUnexpected))
	s.Equal(errUnexpected.errCode, Code(io.EOF))
	s.Equal(int32(0), Code(nil))

	sameCodeErr := newRelayError("new error", ErrPeerIO.errCode, false)
	s.True(sameCodeErr.Is(ErrPeerIO))
}

func (s *ErrSuite) TestWrap() {
	// Service 相关错误。
	s.ErrorIs(WrapErrServiceNotReady("relay", "stopped"), ErrServiceNotReady)
	s.ErrorIs(WrapErrServiceInternal("never throw out"), ErrServiceInternal)

	// Relay 相关错误。
	s.ErrorIs(WrapErrRelayBind(":9999", errors.New("address already in use")), ErrRelayBind)
	s.ErrorIs(WrapErrRelayAccept(errors.New("too many open files")), ErrRelayAccept)
	s.ErrorIs(WrapErrRelayStopped("listener closed"), ErrRelayStopped)
	s.ErrorIs(WrapErrRelayAlreadyStarted(":9999"), ErrRelayAlreadyStarted)

	// Peer 相关错误。
	s.ErrorIs(WrapErrPeerIO("1.2.3.4:5", nil), ErrPeerIO)
	s.ErrorIs(WrapErrPeerClosed("1.2.3.4:5"), ErrPeerClosed)

	// Connector 相关错误。
	s.ErrorIs(WrapErrConnectionRefused("127.0.0.1:1", errors.New("refused")), ErrConnectionRefused)
	s.ErrorIs(WrapErrConnectorIO("127.0.0.1:1", io.EOF), ErrConnectorIO)
	s.ErrorIs(WrapErrConnectorState("Disconnected", "Connected", "connect"), ErrConnectorState)
	s.ErrorIs(WrapErrSendFailed("127.0.0.1:1", io.ErrClosedPipe), ErrSendFailed)

	// 行协议相关错误。
	s.ErrorIs(WrapErrLineInvalid("embedded newline"), ErrLineInvalid)
	s.ErrorIs(WrapErrLineTooLong(10, 5), ErrLineTooLong)

	// Parameter 相关错误。
	s.ErrorIs(WrapErrParameterInvalid("port", "-1"), ErrParameterInvalid)
	s.ErrorIs(WrapErrParameterInvalidRange(0, 65535, 70000), ErrParameterInvalid)
	s.ErrorIs(WrapErrParameterMissing("host"), ErrParameterMissing)
}

func (s *ErrSuite) TestWrapMessage() {
	err := WrapErrRelayBind(":9999", errors.New("address already in use"))
	s.Equal("relay bind failed[addr=:9999]: address already in use", err.Error())

	err = WrapErrLineTooLong(10, 5)
	s.Equal("line too long[10 out of range 0 <= size <= 5]", err.Error())
}

func (s *ErrSuite) TestRetriable() {
	s.True(IsRetryableErr(WrapErrConnectionRefused("x", nil)))
	s.True(IsRetryableErr(errors.Wrap(ErrConnectorIO, "read")))
	s.False(IsRetryableErr(WrapErrRelayBind("x", nil)))
	s.False(IsRetryableErr(io.EOF))
}

func (s *ErrSuite) TestErrorType() {
	s.Equal(InputError, GetErrorType(WrapErrLineInvalid("empty")))
	s.Equal(SystemError, GetErrorType(ErrPeerIO))
	s.Equal("input_error", InputError.String())
}

func (s *ErrSuite) TestCanceledOrTimeout() {
	s.True(IsCanceledOrTimeout(context.Canceled))
	s.True(IsCanceledOrTimeout(errors.Wrap(context.DeadlineExceeded, "dial")))
	s.False(IsCanceledOrTimeout(ErrPeerIO))
}

func (s *ErrSuite) TestCombine() {
	s.Nil(Combine(nil, nil))

	errFirst := errors.New("first")
	errSecond := ErrPeerClosed
	errThird := ErrSendFailed

	err := Combine(nil, errFirst, errSecond, errThird)
	s.ErrorIs(err, errFirst)
	s.ErrorIs(err, errSecond)
	s.ErrorIs(err, errThird)
	s.Equal(Code(ErrSendFailed), Code(err))
	s.Contains(err.Error(), "first")
}

func TestErrors(t *testing.T) {
	suite.Run(t, new(ErrSuite))
}

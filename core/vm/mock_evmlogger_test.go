package vm

// Hand-written in the shape mockgen would generate for the EVMLogger
// interface (no codegen tool available in this tree), following the
// teacher's own gomock-based mocks for tracer/listener-style interfaces.

import (
	"math/big"
	"reflect"

	"go.uber.org/mock/gomock"

	"github.com/luxfi/execd/common"
)

// MockEVMLogger is a gomock-compatible mock of the EVMLogger interface.
type MockEVMLogger struct {
	ctrl     *gomock.Controller
	recorder *MockEVMLoggerMockRecorder
}

// MockEVMLoggerMockRecorder is the recorder for MockEVMLogger's EXPECT() calls.
type MockEVMLoggerMockRecorder struct {
	mock *MockEVMLogger
}

// NewMockEVMLogger constructs a MockEVMLogger.
func NewMockEVMLogger(ctrl *gomock.Controller) *MockEVMLogger {
	mock := &MockEVMLogger{ctrl: ctrl}
	mock.recorder = &MockEVMLoggerMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockEVMLogger) EXPECT() *MockEVMLoggerMockRecorder {
	return m.recorder
}

func (m *MockEVMLogger) CaptureTxStart(gasLimit uint64) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "CaptureTxStart", gasLimit)
}

func (mr *MockEVMLoggerMockRecorder) CaptureTxStart(gasLimit interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CaptureTxStart", reflect.TypeOf((*MockEVMLogger)(nil).CaptureTxStart), gasLimit)
}

func (m *MockEVMLogger) CaptureTxEnd(restGas uint64) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "CaptureTxEnd", restGas)
}

func (mr *MockEVMLoggerMockRecorder) CaptureTxEnd(restGas interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CaptureTxEnd", reflect.TypeOf((*MockEVMLogger)(nil).CaptureTxEnd), restGas)
}

func (m *MockEVMLogger) CaptureStart(env *EVM, from, to common.Address, create bool, input []byte, gas uint64, value *big.Int) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "CaptureStart", env, from, to, create, input, gas, value)
}

func (mr *MockEVMLoggerMockRecorder) CaptureStart(env, from, to, create, input, gas, value interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CaptureStart", reflect.TypeOf((*MockEVMLogger)(nil).CaptureStart), env, from, to, create, input, gas, value)
}

func (m *MockEVMLogger) CaptureEnd(output []byte, gasUsed uint64, err error) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "CaptureEnd", output, gasUsed, err)
}

func (mr *MockEVMLoggerMockRecorder) CaptureEnd(output, gasUsed, err interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CaptureEnd", reflect.TypeOf((*MockEVMLogger)(nil).CaptureEnd), output, gasUsed, err)
}

func (m *MockEVMLogger) CaptureEnter(typ OpCode, from, to common.Address, input []byte, gas uint64, value *big.Int) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "CaptureEnter", typ, from, to, input, gas, value)
}

func (mr *MockEVMLoggerMockRecorder) CaptureEnter(typ, from, to, input, gas, value interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CaptureEnter", reflect.TypeOf((*MockEVMLogger)(nil).CaptureEnter), typ, from, to, input, gas, value)
}

func (m *MockEVMLogger) CaptureExit(output []byte, gasUsed uint64, err error) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "CaptureExit", output, gasUsed, err)
}

func (mr *MockEVMLoggerMockRecorder) CaptureExit(output, gasUsed, err interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CaptureExit", reflect.TypeOf((*MockEVMLogger)(nil).CaptureExit), output, gasUsed, err)
}

func (m *MockEVMLogger) CaptureState(pc uint64, op OpCode, gas, cost uint64, scope *ScopeContext, rData []byte, depth int, err error) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "CaptureState", pc, op, gas, cost, scope, rData, depth, err)
}

func (mr *MockEVMLoggerMockRecorder) CaptureState(pc, op, gas, cost, scope, rData, depth, err interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CaptureState", reflect.TypeOf((*MockEVMLogger)(nil).CaptureState), pc, op, gas, cost, scope, rData, depth, err)
}

func (m *MockEVMLogger) CaptureFault(pc uint64, op OpCode, gas, cost uint64, scope *ScopeContext, depth int, err error) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "CaptureFault", pc, op, gas, cost, scope, depth, err)
}

func (mr *MockEVMLoggerMockRecorder) CaptureFault(pc, op, gas, cost, scope, depth, err interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "CaptureFault", reflect.TypeOf((*MockEVMLogger)(nil).CaptureFault), pc, op, gas, cost, scope, depth, err)
}

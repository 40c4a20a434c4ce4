// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package stock

import (
	reflect "reflect"

	common "github.com/NetBSD/src-sub289/common"
	gomock "go.uber.org/mock/gomock"
)

// MockStock is a mock of Stock interface.
type MockStock[I Index, V any] struct {
	ctrl     *gomock.Controller
	recorder *MockStockMockRecorder[I, V]
}

// MockStockMockRecorder is the mock recorder for MockStock.
type MockStockMockRecorder[I Index, V any] struct {
	mock *MockStock[I, V]
}

// NewMockStock creates a new mock instance.
func NewMockStock[I Index, V any](ctrl *gomock.Controller) *MockStock[I, V] {
	mock := &MockStock[I, V]{ctrl: ctrl}
	mock.recorder = &MockStockMockRecorder[I, V]{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockStock[I, V]) EXPECT() *MockStockMockRecorder[I, V] {
	return m.recorder
}

// Delete mocks base method.
func (m *MockStock[I, V]) Delete(arg0 I) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Delete", arg0)
	ret0, _ := ret[0].(error)
	return ret0
}

// Delete indicates an expected call of Delete.
func (mr *MockStockMockRecorder[I, V]) Delete(arg0 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Delete", reflect.TypeOf((*MockStock[I, V])(nil).Delete), arg0)
}

// Get mocks base method.
func (m *MockStock[I, V]) Get(arg0 I) *V {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Get", arg0)
	ret0, _ := ret[0].(*V)
	return ret0
}

// Get indicates an expected call of Get.
func (mr *MockStockMockRecorder[I, V]) Get(arg0 any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Get", reflect.TypeOf((*MockStock[I, V])(nil).Get), arg0)
}

// GetIds mocks base method.
func (m *MockStock[I, V]) GetIds() (IndexSet[I], error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetIds")
	ret0, _ := ret[0].(IndexSet[I])
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// GetIds indicates an expected call of GetIds.
func (mr *MockStockMockRecorder[I, V]) GetIds() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetIds", reflect.TypeOf((*MockStock[I, V])(nil).GetIds))
}

// GetMemoryFootprint mocks base method.
func (m *MockStock[I, V]) GetMemoryFootprint() *common.MemoryFootprint {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "GetMemoryFootprint")
	ret0, _ := ret[0].(*common.MemoryFootprint)
	return ret0
}

// GetMemoryFootprint indicates an expected call of GetMemoryFootprint.
func (mr *MockStockMockRecorder[I, V]) GetMemoryFootprint() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "GetMemoryFootprint", reflect.TypeOf((*MockStock[I, V])(nil).GetMemoryFootprint))
}

// New mocks base method.
func (m *MockStock[I, V]) New() (I, *V, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "New")
	ret0, _ := ret[0].(I)
	ret1, _ := ret[1].(*V)
	ret2, _ := ret[2].(error)
	return ret0, ret1, ret2
}

// New indicates an expected call of New.
func (mr *MockStockMockRecorder[I, V]) New() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "New", reflect.TypeOf((*MockStock[I, V])(nil).New))
}

// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build js

package logship

import (
	"errors"
	"fmt"
	"syscall/js"
)

var errNoLocalStorage = errors.New("window.localStorage unavailable")

// pageStorage adapts window.localStorage.
type pageStorage struct{}

func defaultStorage() Storage {
	ls := js.Global().Get("localStorage")
	if ls.IsUndefined() || ls.IsNull() {
		return NewMemoryStorage()
	}
	return pageStorage{}
}

func (pageStorage) store() (js.Value, error) {
	ls := js.Global().Get("localStorage")
	if ls.IsUndefined() || ls.IsNull() {
		return js.Value{}, errNoLocalStorage
	}
	return ls, nil
}

func (p pageStorage) GetItem(key string) (value string, ok bool, err error) {
	ls, err := p.store()
	if err != nil {
		return "", false, err
	}
	defer recoverJS(&err)
	v := ls.Call("getItem", key)
	if v.IsNull() || v.IsUndefined() {
		return "", false, nil
	}
	return v.String(), true, nil
}

func (p pageStorage) SetItem(key, value string) (err error) {
	ls, err := p.store()
	if err != nil {
		return err
	}
	// Quota errors surface as a thrown DOMException.
	defer recoverJS(&err)
	ls.Call("setItem", key, value)
	return nil
}

func (p pageStorage) RemoveItem(key string) (err error) {
	ls, err := p.store()
	if err != nil {
		return err
	}
	defer recoverJS(&err)
	ls.Call("removeItem", key)
	return nil
}

func recoverJS(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("localStorage: %v", r)
	}
}

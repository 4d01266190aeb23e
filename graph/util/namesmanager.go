/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package util

import (
	"fmt"
	"strings"
	"sync"
)

/*
NoToken is returned for names which have no token id assigned.
*/
const NoToken = -1

/*
TokenKind identifies one of the token name spaces
*/
type TokenKind int

/*
Known token kinds
*/
const (
	LabelToken TokenKind = iota
	RelationshipTypeToken
	PropertyKeyToken
)

func (tk TokenKind) String() string {
	switch tk {
	case LabelToken:
		return "label"
	case RelationshipTypeToken:
		return "relationship type"
	case PropertyKeyToken:
		return "property key"
	}
	return fmt.Sprintf("token kind %d", int(tk))
}

/*
TokenPersister is called whenever a new token is created. A returned error
prevents the token from being registered.
*/
type TokenPersister func(kind TokenKind, name string, id int) error

/*
TokenHolder manages the names of one token kind. Ids are assigned from a
counter and never reused.
*/
type TokenHolder struct {
	kind      TokenKind
	lock      *sync.RWMutex
	ids       map[string]int // Name to id lookup
	names     []string       // Id to name lookup
	persister TokenPersister // Optional persistence hook
}

/*
newTokenHolder creates a new empty token holder.
*/
func newTokenHolder(kind TokenKind) *TokenHolder {
	return &TokenHolder{kind, &sync.RWMutex{}, make(map[string]int), nil, nil}
}

/*
Kind returns the token kind of this holder.
*/
func (th *TokenHolder) Kind() TokenKind {
	return th.kind
}

/*
GetOrCreateID returns the id of a given name. A new id is created if the name
is not known yet.
*/
func (th *TokenHolder) GetOrCreateID(name string) (int, error) {

	if strings.TrimSpace(name) == "" {
		return NoToken, &KernelError{ErrInvalidTokenName,
			fmt.Sprintf("%v name must not be empty", th.kind)}
	}

	th.lock.RLock()
	id, ok := th.ids[name]
	th.lock.RUnlock()

	if ok {
		return id, nil
	}

	th.lock.Lock()
	defer th.lock.Unlock()

	// Check again in case somebody else was quicker

	if id, ok = th.ids[name]; ok {
		return id, nil
	}

	id = len(th.names)

	if th.persister != nil {
		if err := th.persister(th.kind, name, id); err != nil {
			if _, ok := err.(*KernelError); !ok {
				err = &KernelError{ErrWriting, err.Error()}
			}
			return NoToken, err
		}
	}

	th.ids[name] = id
	th.names = append(th.names, name)

	return id, nil
}

/*
ID looks up the id of a given name. Returns NoToken if the name is unknown.
*/
func (th *TokenHolder) ID(name string) int {
	th.lock.RLock()
	defer th.lock.RUnlock()

	if id, ok := th.ids[name]; ok {
		return id
	}

	return NoToken
}

/*
Name looks up the name of a given id.
*/
func (th *TokenHolder) Name(id int) (string, error) {
	th.lock.RLock()
	defer th.lock.RUnlock()

	if id < 0 || id >= len(th.names) {
		return "", &KernelError{ErrUnknownToken, fmt.Sprintf("%v %v", th.kind, id)}
	}

	return th.names[id], nil
}

/*
Size returns the number of known tokens.
*/
func (th *TokenHolder) Size() int {
	th.lock.RLock()
	defer th.lock.RUnlock()

	return len(th.names)
}

/*
Restore registers a previously persisted token. Tokens must be restored in
id order.
*/
func (th *TokenHolder) Restore(name string, id int) error {
	th.lock.Lock()
	defer th.lock.Unlock()

	if id != len(th.names) {
		return &KernelError{ErrReading,
			fmt.Sprintf("Unexpected %v id %v for %v (expected %v)", th.kind, id, name, len(th.names))}
	}

	th.ids[name] = id
	th.names = append(th.names, name)

	return nil
}

/*
TokenRegistry holds the token name spaces of a graph.
*/
type TokenRegistry struct {
	Labels            *TokenHolder
	RelationshipTypes *TokenHolder
	PropertyKeys      *TokenHolder
}

/*
NewTokenRegistry creates a new empty token registry.
*/
func NewTokenRegistry() *TokenRegistry {
	return &TokenRegistry{
		newTokenHolder(LabelToken),
		newTokenHolder(RelationshipTypeToken),
		newTokenHolder(PropertyKeyToken),
	}
}

/*
Holder returns the token holder for a given kind.
*/
func (tr *TokenRegistry) Holder(kind TokenKind) *TokenHolder {
	switch kind {
	case LabelToken:
		return tr.Labels
	case RelationshipTypeToken:
		return tr.RelationshipTypes
	}
	return tr.PropertyKeys
}

/*
SetPersister sets a persistence hook for all token kinds.
*/
func (tr *TokenRegistry) SetPersister(p TokenPersister) {
	for _, h := range []*TokenHolder{tr.Labels, tr.RelationshipTypes, tr.PropertyKeys} {
		h.lock.Lock()
		h.persister = p
		h.lock.Unlock()
	}
}

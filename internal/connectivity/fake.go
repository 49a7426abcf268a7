package connectivity

import (
	"context"
	"errors"
	"sync"
)

// FakeLink comes up after UpAfter calls to Address following a successful
// Associate. AssociateErr fails every association.
type FakeLink struct {
	mu           sync.Mutex
	Up           bool
	UpAfter      int
	AssociateErr error
	Addr         string

	Associations int
	polls        int
	associated   bool
}

func (f *FakeLink) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Up
}

func (f *FakeLink) Associate(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Associations++
	if f.AssociateErr != nil {
		return f.AssociateErr
	}
	f.associated = true
	return nil
}

func (f *FakeLink) Address() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Up {
		return f.Addr, nil
	}
	if !f.associated {
		return "", errors.New("not associated")
	}
	f.polls++
	if f.UpAfter >= 0 && f.polls > f.UpAfter {
		f.Up = true
		return f.Addr, nil
	}
	return "", errors.New("waiting for dhcp")
}

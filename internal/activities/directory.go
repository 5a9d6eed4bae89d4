package activities

import (
	"fmt"
	"sync"
)

// Directory holds the activity roster of a single process. All reads and
// mutations go through its lock.
type Directory struct {
	mutex           sync.RWMutex
	activities      map[string]*Activity
	enforceCapacity bool
}

type DirectoryOption func(*Directory)

// WithCapacityEnforcement makes Signup fail with ErrActivityFull once an
// activity has MaxParticipants participants.
func WithCapacityEnforcement(enabled bool) DirectoryOption {
	return func(d *Directory) {
		d.enforceCapacity = enabled
	}
}

func NewDirectory(seed map[string]Activity, opts ...DirectoryOption) *Directory {
	d := &Directory{
		activities: make(map[string]*Activity, len(seed)),
	}
	for name, activity := range seed {
		a := activity.clone()
		d.activities[name] = &a
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// List returns a snapshot; changing it does not touch the directory.
func (d *Directory) List() map[string]Activity {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	snapshot := make(map[string]Activity, len(d.activities))
	for name, a := range d.activities {
		snapshot[name] = a.clone()
	}
	return snapshot
}

func (d *Directory) Get(name string) (Activity, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	a, ok := d.activities[name]
	if !ok {
		return Activity{}, ErrNotFound
	}
	return a.clone(), nil
}

func (d *Directory) Signup(name, email string) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	a, ok := d.activities[name]
	if !ok {
		return ErrNotFound
	}
	if a.indexOf(email) >= 0 {
		return fmt.Errorf("%s in %s: %w", email, name, ErrAlreadyRegistered)
	}
	if d.enforceCapacity && len(a.Participants) >= a.MaxParticipants {
		return fmt.Errorf("%s has %d participants: %w", name, len(a.Participants), ErrActivityFull)
	}

	a.Participants = append(a.Participants, email)
	return nil
}

func (d *Directory) Unregister(name, email string) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	a, ok := d.activities[name]
	if !ok {
		return ErrNotFound
	}
	i := a.indexOf(email)
	if i < 0 {
		return fmt.Errorf("%s in %s: %w", email, name, ErrNotRegistered)
	}

	a.Participants = append(a.Participants[:i], a.Participants[i+1:]...)
	return nil
}

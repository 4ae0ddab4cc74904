package sh

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robotalks/rtos.go/pkg/bridge"
	"github.com/robotalks/rtos.go/pkg/env"
	"github.com/robotalks/rtos.go/pkg/kernel"
	"github.com/robotalks/rtos.go/pkg/kernel/sim"
	"github.com/robotalks/rtos.go/pkg/mq"
	"github.com/robotalks/rtos.go/pkg/storage"
)

// Session holds the named queues and the file system a shell works on.
type Session struct {
	Config *env.Config
	Kernel *sim.Kernel
	FS     storage.FileSystem

	lock   sync.Mutex
	queues map[string]*bridge.Queue
}

// QueueStat is the occupancy of a queue.
type QueueStat struct {
	Name     string `json:"name"`
	Capacity int    `json:"capacity"`
	Len      int    `json:"len"`
	Space    int    `json:"space"`
}

// NewSession creates a Session from conf.
func NewSession(conf *env.Config) *Session {
	return &Session{
		Config: conf,
		Kernel: conf.NewKernel(),
		FS:     conf.NewFileSystem(),
		queues: make(map[string]*bridge.Queue),
	}
}

// NewQueue creates a queue. Capacity 0 means the configured default.
// Kernel allocation failures are returned as errors.
func (s *Session) NewQueue(name string, capacity int) (err error) {
	if capacity <= 0 {
		capacity = s.Config.QueueCapacity
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, exists := s.queues[name]; exists {
		return fmt.Errorf("queue %q already exists", name)
	}
	defer func() {
		if r := recover(); r != nil {
			allocErr, ok := r.(*kernel.AllocError)
			if !ok {
				panic(r)
			}
			err = allocErr
		}
	}()
	s.queues[name] = mq.NewWithCodec[*bridge.Envelope](s.Kernel, capacity, bridge.NewEnvelopeCodec(s.Config.SlotSize))
	return nil
}

// Queue finds a queue by name.
func (s *Session) Queue(name string) (*bridge.Queue, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	q := s.queues[name]
	if q == nil {
		return nil, fmt.Errorf("queue %q not found", name)
	}
	return q, nil
}

// Put sends text to a queue.
func (s *Session) Put(name, text string, timeout time.Duration) error {
	q, err := s.Queue(name)
	if err != nil {
		return err
	}
	return q.Put(&bridge.Envelope{Topic: name, Payload: []byte(text)}, timeout)
}

// Get receives text from a queue.
func (s *Session) Get(name string, timeout time.Duration) (*bridge.Envelope, error) {
	q, err := s.Queue(name)
	if err != nil {
		return nil, err
	}
	return q.Get(timeout)
}

// Stat returns the occupancy of a queue.
func (s *Session) Stat(name string) (QueueStat, error) {
	q, err := s.Queue(name)
	if err != nil {
		return QueueStat{}, err
	}
	return QueueStat{Name: name, Capacity: q.Capacity(), Len: q.Len(), Space: q.Space()}, nil
}

// CloseQueue destroys a queue and returns the number of dropped messages.
func (s *Session) CloseQueue(name string) (int, error) {
	s.lock.Lock()
	q := s.queues[name]
	delete(s.queues, name)
	s.lock.Unlock()
	if q == nil {
		return 0, fmt.Errorf("queue %q not found", name)
	}
	var dropped int
	q.OnDrop = func(*bridge.Envelope) { dropped++ }
	err := q.Close()
	return dropped, err
}

// List returns the stats of all queues sorted by name.
func (s *Session) List() []QueueStat {
	s.lock.Lock()
	names := make([]string, 0, len(s.queues))
	for name := range s.queues {
		names = append(names, name)
	}
	s.lock.Unlock()
	sort.Strings(names)
	stats := make([]QueueStat, 0, len(names))
	for _, name := range names {
		if stat, err := s.Stat(name); err == nil {
			stats = append(stats, stat)
		}
	}
	return stats
}

// Close destroys all queues.
func (s *Session) Close() error {
	for _, stat := range s.List() {
		s.CloseQueue(stat.Name)
	}
	return nil
}

// ReadFile reads the content of path.
func (s *Session) ReadFile(path string) ([]byte, error) {
	f, err := storage.NewOpenOptions().Read(true).OpenExisting(true).Open(s.FS, path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// WriteFile replaces the content of path, or appends to it.
func (s *Session) WriteFile(path string, data []byte, appendData bool) error {
	opts := storage.NewOpenOptions().Write(true)
	if appendData {
		opts = opts.OpenAppend(true)
	} else {
		opts = opts.CreateAlways(true)
	}
	f, err := opts.Open(s.FS, path)
	if err != nil {
		return err
	}
	if err = storage.WriteAll(f, data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ParseTimeout parses a duration, "forever" or a number of milliseconds.
func ParseTimeout(str string) (time.Duration, error) {
	switch strings.ToLower(str) {
	case "", "0", "nowait":
		return mq.NoWait, nil
	case "forever", "inf":
		return mq.Forever, nil
	}
	if ms, err := strconv.ParseUint(str, 10, 32); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(str)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q", str)
	}
	return d, nil
}

// Package watch notifies the application when downloaded audio changes on
// disk outside its control, e.g. a file manager deleting a talk directory.
package watch

import (
	"log"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher observes the audio root and invokes onChange after a debounce
// window once the directory tree settles.
type Watcher struct {
	watcher  *fsnotify.Watcher
	onChange func()
	delay    time.Duration

	mu    sync.Mutex
	timer *time.Timer

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New starts watching root. The callback runs on the watcher goroutine and
// must not block for long.
func New(root string, debounce time.Duration, onChange func()) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	w := &Watcher{
		watcher:  fsWatcher,
		onChange: onChange,
		delay:    debounce,
		done:     make(chan struct{}),
	}

	if err := fsWatcher.Add(root); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Close stops the watcher and waits for its goroutine.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
		w.wg.Wait()

		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
	})
	return err
}

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			// New talk directories must be tracked so deletions inside
			// them are seen.
			if event.Op.Has(fsnotify.Create) {
				if err := w.watcher.Add(event.Name); err != nil {
					log.Printf("watch %s: %v", event.Name, err)
				}
			}
			w.schedule()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("audio watcher: %v", err)
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, w.onChange)
}

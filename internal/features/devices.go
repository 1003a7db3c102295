package features

import (
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DeviceWatcher は/dev/input配下の変化を監視してコールバックに通知する
// 短時間に連続するファイルシステムイベントはまとめて1回の通知にする
type DeviceWatcher struct {
	watcher     *fsnotify.Watcher
	mutex       sync.Mutex
	callbacks   map[int]func()
	nextID      int
	stopChan    chan struct{}
	stopOnce    sync.Once
	debounceDur time.Duration
}

// NewDeviceWatcher は新しいDeviceWatcherを作成する
func NewDeviceWatcher() (*DeviceWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &DeviceWatcher{
		watcher:     watcher,
		callbacks:   make(map[int]func()),
		stopChan:    make(chan struct{}),
		debounceDur: 500 * time.Millisecond,
	}, nil
}

// Start はデバイスディレクトリの監視を開始する
func (dw *DeviceWatcher) Start() error {
	dirs := []string{
		"/dev/input",
		"/dev/input/by-id",
	}

	for _, dir := range dirs {
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			if err := dw.watcher.Add(dir); err != nil {
				log.Printf("ディレクトリの監視に失敗しました: %s - %v", dir, err)
			} else {
				log.Printf("ディレクトリ監視を開始: %s", dir)
			}
		}
	}

	go dw.watchEvents()
	return nil
}

// Stop はデバイスの監視を停止する
func (dw *DeviceWatcher) Stop() {
	dw.stopOnce.Do(func() {
		close(dw.stopChan)
		dw.watcher.Close()
	})
}

// Subscribe は変化通知のコールバックを登録し、解除用の関数を返す
func (dw *DeviceWatcher) Subscribe(callback func()) func() {
	dw.mutex.Lock()
	defer dw.mutex.Unlock()

	id := dw.nextID
	dw.nextID++
	dw.callbacks[id] = callback

	return func() {
		dw.mutex.Lock()
		defer dw.mutex.Unlock()
		delete(dw.callbacks, id)
	}
}

// watchEvents はfsnotifyのイベントを監視する
func (dw *DeviceWatcher) watchEvents() {
	// 一時的なファイルシステムイベントを収集してバッチ処理するためのしくみ
	eventTimer := time.NewTimer(dw.debounceDur)
	eventTimer.Stop()
	pendingNotify := false

	for {
		select {
		case <-dw.stopChan:
			eventTimer.Stop()
			return

		case <-eventTimer.C:
			if pendingNotify {
				pendingNotify = false
				dw.notifyCallbacks()
			}

		case event, ok := <-dw.watcher.Events:
			if !ok {
				return
			}

			if !strings.Contains(event.Name, "/dev/input") {
				continue
			}

			if event.Op&fsnotify.Create == fsnotify.Create ||
				event.Op&fsnotify.Remove == fsnotify.Remove {
				// タイマーをリセットして複数のイベントをバッチ処理
				if !pendingNotify {
					pendingNotify = true
					eventTimer.Reset(dw.debounceDur)
				}
			}

		case err, ok := <-dw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("ファイルシステム監視エラー: %v", err)
		}
	}
}

// notifyCallbacks は登録されているすべてのコールバックに通知する
func (dw *DeviceWatcher) notifyCallbacks() {
	var callbacks []func()
	dw.mutex.Lock()
	for _, callback := range dw.callbacks {
		callbacks = append(callbacks, callback)
	}
	dw.mutex.Unlock()

	for _, callback := range callbacks {
		callback()
	}
}

package features

import (
	"log"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/Olbrasoft/SpeechToText-sub000/internal/consts"
	"github.com/Olbrasoft/SpeechToText-sub000/internal/types"
	"github.com/Olbrasoft/SpeechToText-sub000/internal/utils"
)

// Button は監視対象デバイスの物理ボタンを表す
type Button int

const (
	ButtonLeft Button = iota
	ButtonMiddle
	ButtonRight
)

// String はボタンの表示名を返す
func (b Button) String() string {
	switch b {
	case ButtonLeft:
		return "左ボタン"
	case ButtonMiddle:
		return "中ボタン"
	case ButtonRight:
		return "右ボタン"
	default:
		return "不明なボタン"
	}
}

// buttonForCode はイベントコードを既知のボタンに対応付ける
// 既知のボタン以外のコードは監視対象外として扱う
func buttonForCode(code uint16) (Button, bool) {
	switch code {
	case consts.BtnLeft:
		return ButtonLeft, true
	case consts.BtnRight:
		return ButtonRight, true
	case consts.BtnMiddle:
		return ButtonMiddle, true
	default:
		return 0, false
	}
}

// ButtonEvent はボタンの押下・解放の通知を表す
type ButtonEvent struct {
	Button  Button
	Code    uint16
	Pressed bool
	Time    time.Time // カーネルがフレームに付与したイベント時刻
}

// ButtonDeviceMonitor は対象デバイスを専有して監視し、ボタン操作をハンドラと購読者に配送する
// デバイスが見つからない・切断された場合は一定間隔で再接続を試みる
type ButtonDeviceMonitor struct {
	pattern       string
	retryInterval time.Duration
	logEvery      int
	handlers      map[Button]*ButtonClickHandler

	mutex       sync.Mutex
	subscribers map[int]func(ButtonEvent)
	nextSubID   int
	file        *os.File
	grabbed     bool

	wakeChan chan struct{}
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	find       func(pattern string) (string, error)
	openDevice func(path string) (*os.File, error)
}

// NewButtonDeviceMonitor は新しいButtonDeviceMonitorを作成する
func NewButtonDeviceMonitor(
	pattern string,
	retryInterval time.Duration,
	logEvery int,
	handlers map[Button]*ButtonClickHandler,
) *ButtonDeviceMonitor {
	return &ButtonDeviceMonitor{
		pattern:       pattern,
		retryInterval: retryInterval,
		logEvery:      logEvery,
		handlers:      handlers,
		subscribers:   make(map[int]func(ButtonEvent)),
		wakeChan:      make(chan struct{}, 1),
		stopChan:      make(chan struct{}),
		done:          make(chan struct{}),
		find:          FindDevice,
		openDevice: func(path string) (*os.File, error) {
			return os.OpenFile(path, syscall.O_RDONLY, 0660)
		},
	}
}

// Subscribe はボタン通知の購読者を登録し、解除用の関数を返す
func (m *ButtonDeviceMonitor) Subscribe(callback func(ButtonEvent)) func() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	id := m.nextSubID
	m.nextSubID++
	m.subscribers[id] = callback

	return func() {
		m.mutex.Lock()
		defer m.mutex.Unlock()
		delete(m.subscribers, id)
	}
}

// Wake は再接続待ちを即座に起こす（デバイスのホットプラグ通知用）
func (m *ButtonDeviceMonitor) Wake() {
	select {
	case m.wakeChan <- struct{}{}:
	default:
	}
}

// Start は監視ループをバックグラウンドで開始する
func (m *ButtonDeviceMonitor) Start() {
	go m.run()
}

// Stop は監視を停止してデバイスとハンドラを解放する
// ブロック中の読み取りはデバイスを閉じることで解除される
func (m *ButtonDeviceMonitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
		m.closeDevice()
		<-m.done
		for _, handler := range m.handlers {
			handler.Dispose()
		}
	})
}

// run は接続→監視→切断→再接続のループを停止まで繰り返す
func (m *ButtonDeviceMonitor) run() {
	defer close(m.done)

	for {
		path := m.waitForDevice()
		if path == "" {
			return
		}

		if m.connect(path) {
			m.monitor()
			m.closeDevice()
		}

		if m.stopped() {
			return
		}
		if !m.sleep(m.retryInterval) {
			return
		}
	}
}

// waitForDevice はデバイスが見つかるまで一定間隔で検索を繰り返す
// ログの氾濫を避けるため、待機中のログは初回とlogEvery回ごとにのみ出力する
func (m *ButtonDeviceMonitor) waitForDevice() string {
	attempt := 0
	for {
		if m.stopped() {
			return ""
		}

		path, err := m.find(m.pattern)
		if err != nil {
			log.Printf("デバイスの検索に失敗しました: %v", err)
		} else if path != "" {
			return path
		}

		attempt++
		if attempt == 1 || (m.logEvery > 0 && attempt%m.logEvery == 0) {
			log.Printf("デバイスの接続を待っています: %q (試行 %d 回目)", m.pattern, attempt)
		}

		// 再試行間隔・ホットプラグ通知・停止のいずれかを待つ
		timer := time.NewTimer(m.retryInterval)
		select {
		case <-m.stopChan:
			timer.Stop()
			return ""
		case <-m.wakeChan:
			timer.Stop()
		case <-timer.C:
		}
	}
}

// connect はデバイスを開いて専有を試みる
// 専有の失敗は致命的ではなく、非専有モードで監視を継続する
func (m *ButtonDeviceMonitor) connect(path string) bool {
	file, err := m.openDevice(path)
	if err != nil {
		if os.IsPermission(err) {
			log.Printf("デバイスを開く権限がありません: %s - inputグループへの追加が必要です (sudo usermod -aG input $USER): %v", path, err)
		} else {
			log.Printf("デバイスを開くのに失敗しました: %s - %v", path, err)
		}
		return false
	}

	m.mutex.Lock()
	m.file = file
	m.grabbed = false
	m.mutex.Unlock()

	if err := utils.IOCtl(file, consts.EVIOCGRAB, 1); err != nil {
		log.Printf("デバイスの専有に失敗しました（イベントはデスクトップにも伝わります）: %v", err)
	} else {
		m.mutex.Lock()
		m.grabbed = true
		m.mutex.Unlock()
		log.Printf("デバイスを専有しました: %s（イベントはデスクトップに伝わりません）", path)
	}

	return true
}

// monitor は24バイトのフレームを読み続けてボタン操作を配送する
// 読み取りの失敗・短い読み取り（EOFを含む）は切断として扱う
func (m *ButtonDeviceMonitor) monitor() {
	m.mutex.Lock()
	file := m.file
	m.mutex.Unlock()
	if file == nil {
		return
	}

	buf := make([]byte, types.EventSize)
	for {
		n, err := file.Read(buf)
		if err != nil || n != types.EventSize {
			if !m.stopped() {
				log.Printf("デバイスから切断されました（再接続を試みます）")
			}
			return
		}

		event, err := types.ParseEvent(buf)
		if err != nil {
			// ABI不一致は防御的に切断として扱う
			log.Printf("イベントの解析に失敗しました: %v", err)
			return
		}

		m.dispatch(event)
	}
}

// dispatch は既知のボタンのEV_KEYイベントのみをハンドラと購読者に配送する
func (m *ButtonDeviceMonitor) dispatch(event types.Event) {
	if event.Type != consts.Key {
		return
	}
	if event.Value != consts.KeyPress && event.Value != consts.KeyRelease {
		return
	}
	button, ok := buttonForCode(event.Code)
	if !ok {
		return
	}

	pressed := event.Value == consts.KeyPress
	if pressed {
		if handler, ok := m.handlers[button]; ok {
			if err := handler.RegisterClick(); err != nil {
				log.Printf("クリックの登録に失敗しました: %v", err)
			}
		}
	}

	m.notify(ButtonEvent{
		Button:  button,
		Code:    event.Code,
		Pressed: pressed,
		Time:    time.Unix(event.TimeSec, event.TimeUsec*1000),
	})
}

// notify は登録されているすべての購読者に通知する
func (m *ButtonDeviceMonitor) notify(event ButtonEvent) {
	var callbacks []func(ButtonEvent)
	m.mutex.Lock()
	for _, callback := range m.subscribers {
		callbacks = append(callbacks, callback)
	}
	m.mutex.Unlock()

	for _, callback := range callbacks {
		callback(event)
	}
}

// closeDevice は専有を解除してデバイスを閉じる
func (m *ButtonDeviceMonitor) closeDevice() {
	m.mutex.Lock()
	file := m.file
	grabbed := m.grabbed
	m.file = nil
	m.grabbed = false
	m.mutex.Unlock()

	if file == nil {
		return
	}
	if grabbed {
		if err := utils.IOCtl(file, consts.EVIOCGRAB, 0); err != nil {
			log.Printf("デバイスの専有解除に失敗しました: %v", err)
		}
	}
	_ = file.Close()
}

func (m *ButtonDeviceMonitor) stopped() bool {
	select {
	case <-m.stopChan:
		return true
	default:
		return false
	}
}

// sleep は停止要求を受け付けながら待機する。停止された場合はfalseを返す
func (m *ButtonDeviceMonitor) sleep(duration time.Duration) bool {
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-m.stopChan:
		return false
	case <-timer.C:
		return true
	}
}

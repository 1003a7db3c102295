package features

import (
	"fmt"
	"os"
	"sync"
	"syscall"
	"unsafe"

	"github.com/Olbrasoft/SpeechToText-sub000/internal/utils"
)

// KeyboardState はキーボードデバイスのLED状態を参照するインターフェース
type KeyboardState interface {
	IsCapsLockOn() (bool, error)
	Close() error
}

type keyboardDevice struct {
	file  *os.File
	ioctl func(file *os.File, request uint64, arg uintptr) error
}

// OpenKeyboardState は状態参照用にキーボードデバイスを開く
func OpenKeyboardState(path string) (KeyboardState, error) {
	f, err := os.OpenFile(path, syscall.O_RDONLY|syscall.O_NONBLOCK, 0660)
	if err != nil {
		return nil, fmt.Errorf("デバイスファイルを開くのに失敗しました: %w", err)
	}
	return &keyboardDevice{file: f, ioctl: utils.IOCtl}, nil
}

// LED関連の定数（input-event-codes.h / input.hから）
const (
	ledCapsLock = 0x01       // LED_CAPSL
	ledMax      = 0x0f       // LED_MAX
	eviocgled   = 0x80024519 // 点灯中のLEDビットマスク取得用のIOCTL
)

// IsCapsLockOn はCapsLock LEDの点灯状態を返す
func (k *keyboardDevice) IsCapsLockOn() (bool, error) {
	leds, err := k.litLeds()
	if err != nil {
		return false, err
	}
	for _, led := range leds {
		if led == ledCapsLock {
			return true, nil
		}
	}
	return false, nil
}

// litLeds は点灯中のLEDコードの一覧を取得する
func (k *keyboardDevice) litLeds() ([]int, error) {
	ledBits := make([]byte, ledMax/8+1)

	if err := k.ioctl(k.file, eviocgled, uintptr(unsafe.Pointer(&ledBits[0]))); err != nil {
		return nil, err
	}

	var lit []int
	for led := 0; led <= ledMax; led++ {
		byteIndex := led / 8
		bitIndex := led % 8
		if (ledBits[byteIndex] & (1 << bitIndex)) != 0 {
			lit = append(lit, led)
		}
	}
	return lit, nil
}

// Close はキーボードデバイスを閉じる
func (k *keyboardDevice) Close() error {
	return k.file.Close()
}

// KeyEventHub は合成されたキー解放を実入力と同様に購読者へ知らせる
// ActionExecutorのKeyEventSinkとして使用され、ディクテーションワークフロー側が購読する
type KeyEventHub struct {
	mutex       sync.Mutex
	subscribers map[int]func(key int)
	nextID      int
}

// NewKeyEventHub は新しいKeyEventHubを作成する
func NewKeyEventHub() *KeyEventHub {
	return &KeyEventHub{
		subscribers: make(map[int]func(key int)),
	}
}

// Subscribe はキー解放通知の購読者を登録し、解除用の関数を返す
func (h *KeyEventHub) Subscribe(callback func(key int)) func() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	id := h.nextID
	h.nextID++
	h.subscribers[id] = callback

	return func() {
		h.mutex.Lock()
		defer h.mutex.Unlock()
		delete(h.subscribers, id)
	}
}

// RaiseKeyReleased はキー解放をすべての購読者に通知する
func (h *KeyEventHub) RaiseKeyReleased(key int) {
	var callbacks []func(key int)
	h.mutex.Lock()
	for _, callback := range h.subscribers {
		callbacks = append(callbacks, callback)
	}
	h.mutex.Unlock()

	for _, callback := range callbacks {
		callback(key)
	}
}

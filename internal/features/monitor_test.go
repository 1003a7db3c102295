package features

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Olbrasoft/SpeechToText-sub000/internal/consts"
	"github.com/Olbrasoft/SpeechToText-sub000/internal/types"
)

// newPipeMonitor はパイプの読み取り側をデバイスとして使うモニターを作成する
// 2回目以降の接続試行はデバイス消失として扱う
func newPipeMonitor(t *testing.T, handlers map[Button]*ButtonClickHandler) (*ButtonDeviceMonitor, *os.File) {
	t.Helper()

	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = r.Close()
		_ = w.Close()
	})

	opened := false
	m := NewButtonDeviceMonitor("テストデバイス", 10*time.Millisecond, 30, handlers)
	m.find = func(string) (string, error) { return "/dev/input/event99", nil }
	m.openDevice = func(string) (*os.File, error) {
		if opened {
			return nil, errors.New("デバイスが見つかりません")
		}
		opened = true
		return r, nil
	}
	return m, w
}

func writeFrame(t *testing.T, w *os.File, event types.Event) {
	t.Helper()
	_, err := w.Write(event.Marshal())
	require.NoError(t, err)
}

func waitForEvent(t *testing.T, events <-chan ButtonEvent) ButtonEvent {
	t.Helper()
	select {
	case event := <-events:
		return event
	case <-time.After(time.Second):
		t.Fatal("ボタン通知が届きませんでした")
		return ButtonEvent{}
	}
}

func TestMonitorDispatchesPressAndRelease(t *testing.T) {
	m, w := newPipeMonitor(t, nil)

	events := make(chan ButtonEvent, 8)
	unsubscribe := m.Subscribe(func(event ButtonEvent) { events <- event })
	defer unsubscribe()

	m.Start()
	defer m.Stop()

	writeFrame(t, w, types.Event{Type: consts.Key, Code: consts.BtnLeft, Value: consts.KeyPress})
	writeFrame(t, w, types.Event{Type: consts.Key, Code: consts.BtnLeft, Value: consts.KeyRelease})

	press := waitForEvent(t, events)
	assert.Equal(t, ButtonLeft, press.Button)
	assert.Equal(t, uint16(consts.BtnLeft), press.Code)
	assert.True(t, press.Pressed)

	release := waitForEvent(t, events)
	assert.Equal(t, ButtonLeft, release.Button)
	assert.False(t, release.Pressed)
}

func TestMonitorReportsKernelTimestamp(t *testing.T) {
	m, w := newPipeMonitor(t, nil)

	events := make(chan ButtonEvent, 1)
	defer m.Subscribe(func(event ButtonEvent) { events <- event })()

	m.Start()
	defer m.Stop()

	// 通知の時刻は受信時刻ではなく、カーネルがフレームに付与した時刻であること
	writeFrame(t, w, types.Event{
		TimeSec:  1700000000,
		TimeUsec: 250000,
		Type:     consts.Key,
		Code:     consts.BtnLeft,
		Value:    consts.KeyPress,
	})

	event := waitForEvent(t, events)
	assert.Equal(t, time.Unix(1700000000, 250000*1000), event.Time)
}

func TestMonitorIgnoresUnknownCodesAndOtherTypes(t *testing.T) {
	m, w := newPipeMonitor(t, nil)

	events := make(chan ButtonEvent, 8)
	defer m.Subscribe(func(event ButtonEvent) { events <- event })()

	m.Start()
	defer m.Stop()

	// 未知のボタンコード・キー以外のタイプ・リピート値は配送されない
	writeFrame(t, w, types.Event{Type: consts.Key, Code: 999, Value: consts.KeyPress})
	writeFrame(t, w, types.Event{Type: consts.Syn, Code: consts.SynReport, Value: 0})
	writeFrame(t, w, types.Event{Type: consts.Key, Code: consts.BtnRight, Value: 2})
	writeFrame(t, w, types.Event{Type: consts.Key, Code: consts.BtnRight, Value: consts.KeyPress})

	event := waitForEvent(t, events)
	assert.Equal(t, ButtonRight, event.Button)
	assert.True(t, event.Pressed)

	select {
	case extra := <-events:
		t.Fatalf("余分な通知が届きました: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMonitorUnsubscribeStopsNotifications(t *testing.T) {
	m, w := newPipeMonitor(t, nil)

	events := make(chan ButtonEvent, 8)
	unsubscribe := m.Subscribe(func(event ButtonEvent) { events <- event })

	m.Start()
	defer m.Stop()

	writeFrame(t, w, types.Event{Type: consts.Key, Code: consts.BtnMiddle, Value: consts.KeyPress})
	waitForEvent(t, events)

	unsubscribe()
	writeFrame(t, w, types.Event{Type: consts.Key, Code: consts.BtnMiddle, Value: consts.KeyRelease})

	select {
	case extra := <-events:
		t.Fatalf("解除後に通知が届きました: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMonitorReconnectsAfterDisconnect(t *testing.T) {
	reconnects := make(chan struct{}, 8)

	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	attempts := 0
	m := NewButtonDeviceMonitor("テストデバイス", 10*time.Millisecond, 30, nil)
	m.find = func(string) (string, error) {
		attempts++
		if attempts > 1 {
			select {
			case reconnects <- struct{}{}:
			default:
			}
			return "", nil // 切断後は未接続のまま
		}
		return "/dev/input/event99", nil
	}
	m.openDevice = func(string) (*os.File, error) { return r, nil }

	m.Start()
	defer m.Stop()

	// 書き込み側を閉じるとEOF（長さ0の読み取り）で切断になる
	require.NoError(t, w.Close())

	select {
	case <-reconnects:
	case <-time.After(time.Second):
		t.Fatal("切断後に再接続が試行されませんでした")
	}
}

func TestMonitorStopUnblocksRead(t *testing.T) {
	m, _ := newPipeMonitor(t, nil)

	m.Start()
	time.Sleep(50 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stopがブロックされたままです")
	}
}

func TestLeftSingleClickSynthesizesBoundKeyAndRaisesRelease(t *testing.T) {
	dev := &recordingUinput{}
	hub := NewKeyEventHub()

	released := make(chan int, 1)
	defer hub.Subscribe(func(key int) { released <- key })()

	executor := NewActionExecutor(newTestInjector(dev), hub, 20*time.Millisecond)
	handler := NewButtonClickHandler(
		ButtonLeft,
		50*time.Millisecond, 0, 3,
		executor,
		NewKeyPressAction(consts.KeyCapsLock, true),
		NoAction,
		NoAction,
	)

	m, w := newPipeMonitor(t, map[Button]*ButtonClickHandler{ButtonLeft: handler})
	m.Start()
	defer m.Stop()

	writeFrame(t, w, types.Event{Type: consts.Key, Code: consts.BtnLeft, Value: consts.KeyPress})
	writeFrame(t, w, types.Event{Type: consts.Key, Code: consts.BtnLeft, Value: consts.KeyRelease})

	// 分類→合成→解放通知の順に流れる
	select {
	case key := <-released:
		assert.Equal(t, consts.KeyCapsLock, key)
	case <-time.After(2 * time.Second):
		t.Fatal("キー解放通知が届きませんでした")
	}

	expected := []types.Event{
		{Type: consts.Key, Code: consts.KeyCapsLock, Value: consts.KeyPress},
		{Type: consts.Syn, Code: consts.SynReport, Value: 0},
		{Type: consts.Key, Code: consts.KeyCapsLock, Value: consts.KeyRelease},
		{Type: consts.Syn, Code: consts.SynReport, Value: 0},
	}
	assert.Equal(t, expected, dev.writtenEvents())
}

func TestButtonStrings(t *testing.T) {
	assert.NotEmpty(t, ButtonLeft.String())
	assert.NotEmpty(t, ButtonMiddle.String())
	assert.NotEmpty(t, ButtonRight.String())

	button, ok := buttonForCode(consts.BtnMiddle)
	assert.True(t, ok)
	assert.Equal(t, ButtonMiddle, button)

	_, ok = buttonForCode(0x120)
	assert.False(t, ok)
}

package features

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Olbrasoft/SpeechToText-sub000/internal/consts"
	"github.com/Olbrasoft/SpeechToText-sub000/internal/types"
)

// recordingSink はKeyEventSinkの記録用ダブル
type recordingSink struct {
	mu   sync.Mutex
	keys []int
}

func (r *recordingSink) RaiseKeyReleased(key int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, key)
}

func (r *recordingSink) snapshot() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]int, len(r.keys))
	copy(keys, r.keys)
	return keys
}

func TestKeyPressActionRaisesReleaseEvent(t *testing.T) {
	dev := &recordingUinput{}
	sink := &recordingSink{}
	executor := NewActionExecutor(newTestInjector(dev), sink, 10*time.Millisecond)

	require.NoError(t, executor.Execute(NewKeyPressAction(consts.KeyCapsLock, true)))

	assert.Equal(t, []int{consts.KeyCapsLock}, sink.snapshot())
	assert.Len(t, dev.writtenEvents(), 4) // down + sync + up + sync
}

func TestKeyPressActionWithoutReleaseEventSkipsSink(t *testing.T) {
	dev := &recordingUinput{}
	sink := &recordingSink{}
	executor := NewActionExecutor(newTestInjector(dev), sink, 0)

	require.NoError(t, executor.Execute(NewKeyPressAction(consts.KeyCapsLock, false)))

	assert.Empty(t, sink.snapshot())
	assert.Len(t, dev.writtenEvents(), 4)
}

func TestKeyComboActionSynthesizesCombo(t *testing.T) {
	dev := &recordingUinput{}
	executor := NewActionExecutor(newTestInjector(dev), nil, 0)

	require.NoError(t, executor.Execute(NewKeyComboAction(consts.KeyLeftCtrl, consts.KeyC)))

	events := dev.writtenEvents()
	require.Len(t, events, 8)
	assert.Equal(t, types.Event{Type: consts.Key, Code: consts.KeyLeftCtrl, Value: consts.KeyPress}, events[0])
	assert.Equal(t, types.Event{Type: consts.Key, Code: consts.KeyLeftCtrl, Value: consts.KeyRelease}, events[6])
}

func TestNoActionDoesNothing(t *testing.T) {
	dev := &recordingUinput{}
	sink := &recordingSink{}
	executor := NewActionExecutor(newTestInjector(dev), sink, 0)

	require.NoError(t, executor.Execute(NoAction))

	assert.Empty(t, dev.snapshot())
	assert.Empty(t, sink.snapshot())
}

func TestShellCommandActionStartsProcess(t *testing.T) {
	executor := NewActionExecutor(newTestInjector(&recordingUinput{}), nil, 0)

	assert.NoError(t, executor.Execute(NewShellCommandAction("true")))
}

func TestActionNames(t *testing.T) {
	assert.Contains(t, NewKeyPressAction(58, false).Name(), "58")
	assert.Contains(t, NewKeyComboAction(29, 46).Name(), "29")
	assert.Contains(t, NewShellCommandAction("echo hi").Name(), "echo hi")
	assert.NotEmpty(t, NoAction.Name())
}

func TestButtonClickHandlerDispatchesBoundAction(t *testing.T) {
	dev := &recordingUinput{}
	executor := NewActionExecutor(newTestInjector(dev), nil, 0)
	handler := NewButtonClickHandler(
		ButtonLeft,
		30*time.Millisecond, 0, 3,
		executor,
		NewKeyPressAction(consts.KeyCapsLock, false),
		NoAction,
		NoAction,
	)
	defer handler.Dispose()

	require.NoError(t, handler.RegisterClick())

	// シングルクリック分類後、動作が非同期で実行される
	require.Eventually(t, func() bool {
		return len(dev.writtenEvents()) == 4
	}, time.Second, 10*time.Millisecond)
}

func TestButtonClickHandlerUnsetKindIsNoOp(t *testing.T) {
	dev := &recordingUinput{}
	executor := NewActionExecutor(newTestInjector(dev), nil, 0)
	handler := NewButtonClickHandler(
		ButtonRight,
		30*time.Millisecond, 0, 3,
		executor,
		NoAction,
		NoAction,
		NoAction,
	)
	defer handler.Dispose()

	require.NoError(t, handler.RegisterClick())

	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, dev.writtenEvents())
}

func TestButtonClickHandlerDisposeStopsClicks(t *testing.T) {
	executor := NewActionExecutor(newTestInjector(&recordingUinput{}), nil, 0)
	handler := NewButtonClickHandler(ButtonMiddle, 30*time.Millisecond, 0, 3, executor, NoAction, NoAction, NoAction)

	handler.Dispose()

	assert.ErrorIs(t, handler.RegisterClick(), ErrDetectorDisposed)
}

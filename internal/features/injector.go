package features

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/Olbrasoft/SpeechToText-sub000/internal/consts"
	"github.com/Olbrasoft/SpeechToText-sub000/internal/types"
	"github.com/Olbrasoft/SpeechToText-sub000/internal/utils"
)

// uinputのコントロールデバイスのパス
const uinputPath = "/dev/uinput"

// uinputHandle は仮想キーボードのデバイス操作を抽象化するインターフェース
// 実デバイスは/dev/uinputへのioctlと書き込みで実装する
type uinputHandle interface {
	IOCtl(request uint64, arg uintptr) error
	Write(data []byte) error
	Close() error
}

type uinputFile struct {
	file *os.File
}

func (u *uinputFile) IOCtl(request uint64, arg uintptr) error {
	return utils.IOCtl(u.file, request, arg)
}

func (u *uinputFile) Write(data []byte) error {
	_, err := u.file.Write(data)
	return err
}

func (u *uinputFile) Close() error {
	return u.file.Close()
}

func openUinput(path string) (uinputHandle, error) {
	f, err := os.OpenFile(path, syscall.O_WRONLY|syscall.O_NONBLOCK, 0660)
	if err != nil {
		return nil, fmt.Errorf("uinputデバイスを開くのに失敗しました: %w", err)
	}
	return &uinputFile{file: f}, nil
}

// KeyInjector は一時的な仮想キーボードを作成してキー入力を合成する
// 合成のたびにデバイスを作成・破棄するため、同時に複数の合成が/dev/uinput上で
// 競合しないよう呼び出しはミューテックスで直列化される
type KeyInjector struct {
	devicePath    string
	deviceName    string
	settleDelay   time.Duration // デバイスノードが現れるまでの待機時間
	interKeyDelay time.Duration // 修飾キー間の待機時間
	pressDelay    time.Duration // メインキーを押し続ける時間
	cleanupDelay  time.Duration // デバイス破棄前の待機時間
	mutex         sync.Mutex
	open          func(path string) (uinputHandle, error)
}

// NewKeyInjector は新しいKeyInjectorを作成する
// simulationDelayはデバイス作成後・破棄前の待機時間として使用される
func NewKeyInjector(simulationDelay time.Duration) *KeyInjector {
	return &KeyInjector{
		devicePath:    uinputPath,
		deviceName:    "SpeechToText Virtual Keyboard",
		settleDelay:   simulationDelay,
		interKeyDelay: 20 * time.Millisecond,
		pressDelay:    50 * time.Millisecond,
		cleanupDelay:  simulationDelay,
		open:          openUinput,
	}
}

// PressKey は単一キーの押下と解放を合成する
func (ki *KeyInjector) PressKey(key int) error {
	return ki.PressCombo(key)
}

// PressCombo は修飾キー列とメインキーの組み合わせを合成する
// keysの最後の要素がメインキー、それ以前が修飾キーとして扱われる
// 修飾キーは順に押し、メインキーの押下・解放の後に逆順で離す
func (ki *KeyInjector) PressCombo(keys ...int) error {
	if len(keys) == 0 {
		return fmt.Errorf("合成するキーが指定されていません")
	}

	ki.mutex.Lock()
	defer ki.mutex.Unlock()

	dev, err := ki.createDevice(keys)
	if err != nil {
		return err
	}
	defer ki.destroyDevice(dev)

	// カーネルがデバイスノードを公開するまで待つ
	time.Sleep(ki.settleDelay)

	modifiers := keys[:len(keys)-1]
	key := keys[len(keys)-1]

	// 修飾キーを順に押す
	for _, modifier := range modifiers {
		if err := ki.sendKey(dev, modifier, consts.KeyPress); err != nil {
			return err
		}
		time.Sleep(ki.interKeyDelay)
	}

	// メインキーの押下と解放
	if err := ki.sendKey(dev, key, consts.KeyPress); err != nil {
		return err
	}
	time.Sleep(ki.pressDelay)
	if err := ki.sendKey(dev, key, consts.KeyRelease); err != nil {
		return err
	}

	// 修飾キーを逆順に離す
	for i := len(modifiers) - 1; i >= 0; i-- {
		time.Sleep(ki.interKeyDelay)
		if err := ki.sendKey(dev, modifiers[i], consts.KeyRelease); err != nil {
			return err
		}
	}

	return nil
}

// createDevice は合成に必要なキーを登録した一時uinputデバイスを作成する
// デバイスが開けない場合・作成できない場合は中断し、部分的なデバイスは残さない
func (ki *KeyInjector) createDevice(keys []int) (uinputHandle, error) {
	dev, err := ki.open(ki.devicePath)
	if err != nil {
		return nil, err
	}

	// キーイベント(EV_KEY)と使用するキーコードを登録する
	// 個々の登録失敗は警告に留める（登録できなかったキーは合成されないだけ）
	if err := dev.IOCtl(consts.SetEvBit, uintptr(consts.Key)); err != nil {
		log.Printf("キーイベント(EV_KEY)の登録に失敗しました: %v", err)
	}
	for _, key := range uniqueKeys(keys) {
		if err := dev.IOCtl(consts.SetKeyBit, uintptr(key)); err != nil {
			log.Printf("キービットの登録に失敗しました %v: %v", key, err)
		}
	}

	userDev := types.NewKeyboardUserDev(ki.deviceName)
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, userDev); err != nil {
		_ = dev.Close()
		return nil, fmt.Errorf("ユーザーデバイスバッファの書き込みに失敗しました: %v", err)
	}
	if err := dev.Write(buf.Bytes()); err != nil {
		_ = dev.Close()
		return nil, fmt.Errorf("デバイス構造体の書き込みに失敗しました: %v", err)
	}

	if err := dev.IOCtl(consts.DevCreate, 0); err != nil {
		_ = dev.Close()
		return nil, fmt.Errorf("仮想キーボードの作成に失敗しました: %v", err)
	}

	return dev, nil
}

// destroyDevice は合成完了後にデバイスを破棄して閉じる
func (ki *KeyInjector) destroyDevice(dev uinputHandle) {
	time.Sleep(ki.cleanupDelay)
	if err := dev.IOCtl(consts.DevDestroy, 0); err != nil {
		log.Printf("仮想キーボードの破棄に失敗しました: %v", err)
	}
	if err := dev.Close(); err != nil {
		log.Printf("uinputデバイスのクローズに失敗しました: %v", err)
	}
}

// sendKey はキーイベントとそれに続く同期イベントを書き込む
func (ki *KeyInjector) sendKey(dev uinputHandle, key int, value int32) error {
	events := []types.Event{
		{Type: consts.Key, Code: uint16(key), Value: value},
		{Type: consts.Syn, Code: consts.SynReport, Value: 0},
	}
	for _, ev := range events {
		if err := dev.Write(ev.Marshal()); err != nil {
			return fmt.Errorf("イベントの書き込みに失敗しました: %v", err)
		}
	}
	return nil
}

// uniqueKeys は順序を保ったまま重複するキーコードを取り除く
func uniqueKeys(keys []int) []int {
	seen := make(map[int]struct{}, len(keys))
	unique := make([]int, 0, len(keys))
	for _, key := range keys {
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, key)
	}
	return unique
}

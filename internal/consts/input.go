package consts

// uinput デバイスの定数（uinput.hから）
const (
	MaxNameSize = 80         // デバイス名の最大サイズ
	DevCreate   = 0x5501     // デバイス作成用のIOCTL
	DevDestroy  = 0x5502     // デバイス破棄用のIOCTL
	SetEvBit    = 0x40045564 // イベントビット設定用のIOCTL
	SetKeyBit   = 0x40045565 // キービット設定用のIOCTL
	BusUsb      = 0x03       // USBバスタイプ
)

// evdev デバイス制御用の定数
const (
	EVIOCGRAB = 0x40044590 // デバイスの排他制御用のIOCTL
	AbsSize   = 64         // 絶対座標の配列サイズ
)

// イベントタイプの定数（input-event-codes.hから）
const (
	Syn       = 0x00 // 同期イベント
	Key       = 0x01 // キーイベント
	SynReport = 0    // イベント報告の同期
)

// キー・ボタンイベントの値
const (
	KeyRelease = 0 // 離した
	KeyPress   = 1 // 押した
)

// マウスボタンのコード
const (
	BtnLeft   = 0x110 // マウス左ボタン (272)
	BtnRight  = 0x111 // マウス右ボタン (273)
	BtnMiddle = 0x112 // マウス中ボタン (274)
)

// バインディングで使用するキーコード（input-event-codes.hから）
const (
	KeyEsc       = 1   // ESC
	KeyLeftCtrl  = 29  // 左Ctrl
	KeyLeftShift = 42  // 左Shift
	KeyC         = 46  // C
	KeyV         = 47  // V
	KeyLeftAlt   = 56  // 左Alt
	KeyCapsLock  = 58  // CapsLock
	KeyLeftMeta  = 125 // 左Meta
)

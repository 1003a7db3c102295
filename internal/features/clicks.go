package features

import (
	"errors"
	"sync"
	"time"
)

// ClickKind はクリック分類の結果を表す
type ClickKind int

const (
	SingleClick ClickKind = iota + 1
	DoubleClick
	TripleClick
)

// String はクリック種別の表示名を返す
func (k ClickKind) String() string {
	switch k {
	case SingleClick:
		return "シングルクリック"
	case DoubleClick:
		return "ダブルクリック"
	case TripleClick:
		return "トリプルクリック"
	default:
		return "不明なクリック"
	}
}

// ErrDetectorDisposed は破棄済みのClickDetectorへの操作を表すエラー
var ErrDetectorDisposed = errors.New("クリック検出器は既に破棄されています")

// ClickDetector はボタン1つ分の連打回数を計測してクリック種別を分類する
// RegisterClickと分類タイマーの発火は同一のミューテックスで直列化される
type ClickDetector struct {
	mutex      sync.Mutex
	threshold  time.Duration // この時間内の連続クリックを一続きとして数える
	debounce   time.Duration // この時間未満の間隔のクリックはチャタリングとして捨てる
	maxCount   int
	classified func(ClickKind)

	count      int
	lastClick  time.Time
	timer      *time.Timer
	generation int // タイマーを張り直すたびに増え、古いタイマーの発火を無効にする
	disposed   bool
}

// NewClickDetector は新しいClickDetectorを作成する
// 分類が確定するとclassifiedが呼ばれ、計測状態は初期化される
func NewClickDetector(threshold, debounce time.Duration, maxCount int, classified func(ClickKind)) *ClickDetector {
	return &ClickDetector{
		threshold:  threshold,
		debounce:   debounce,
		maxCount:   maxCount,
		classified: classified,
	}
}

// RegisterClick は1回のクリックを登録する
// 最大回数に達した場合はその場で分類を確定し、そうでなければ分類タイマーを張り直す
func (cd *ClickDetector) RegisterClick() error {
	cd.mutex.Lock()
	if cd.disposed {
		cd.mutex.Unlock()
		return ErrDetectorDisposed
	}

	now := time.Now()
	// チャタリング対策: 直前のクリックからの間隔が短すぎる場合は捨てる
	// （カウントも保留中のタイマーもそのまま）
	if cd.count > 0 && now.Sub(cd.lastClick) < cd.debounce {
		cd.mutex.Unlock()
		return nil
	}

	cd.count++
	cd.lastClick = now

	// 最大回数に達したらタイムアウトを待たずに確定する
	if cd.count >= cd.maxCount {
		kind := kindForCount(cd.count)
		cd.stopTimerLocked()
		cd.count = 0
		cd.mutex.Unlock()
		cd.classified(kind)
		return nil
	}

	cd.armTimerLocked()
	cd.mutex.Unlock()
	return nil
}

// Reset は保留中のタイマーを止めて計測状態を初期化する（分類は発火しない）
func (cd *ClickDetector) Reset() {
	cd.mutex.Lock()
	defer cd.mutex.Unlock()
	cd.stopTimerLocked()
	cd.count = 0
	cd.lastClick = time.Time{}
}

// Dispose は検出器を破棄する。以後のRegisterClickはErrDetectorDisposedを返す
func (cd *ClickDetector) Dispose() {
	cd.mutex.Lock()
	defer cd.mutex.Unlock()
	cd.stopTimerLocked()
	cd.count = 0
	cd.disposed = true
}

// armTimerLocked は分類タイマーを張り直す。呼び出し側がロックを保持していること
func (cd *ClickDetector) armTimerLocked() {
	cd.stopTimerLocked()
	generation := cd.generation
	cd.timer = time.AfterFunc(cd.threshold, func() {
		cd.onTimeout(generation)
	})
}

// stopTimerLocked は保留中のタイマーを無効化する。呼び出し側がロックを保持していること
func (cd *ClickDetector) stopTimerLocked() {
	cd.generation++
	if cd.timer != nil {
		cd.timer.Stop()
		cd.timer = nil
	}
}

// onTimeout は分類タイマーの発火時に累積回数からクリック種別を確定する
func (cd *ClickDetector) onTimeout(generation int) {
	cd.mutex.Lock()
	// 発火待ちの間に張り直し・停止されたタイマーは無視する
	if cd.disposed || generation != cd.generation || cd.count == 0 {
		cd.mutex.Unlock()
		return
	}
	kind := kindForCount(cd.count)
	cd.count = 0
	cd.timer = nil
	cd.mutex.Unlock()
	cd.classified(kind)
}

// kindForCount は累積クリック回数を分類結果に変換する
func kindForCount(count int) ClickKind {
	switch {
	case count <= 1:
		return SingleClick
	case count == 2:
		return DoubleClick
	default:
		return TripleClick
	}
}

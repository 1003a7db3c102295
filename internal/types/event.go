package types

import (
	"encoding/binary"
	"fmt"
)

// EventSize は64bitカーネルにおけるinput_event構造体のサイズ
// （8バイトの秒 + 8バイトのマイクロ秒 + 2バイトのタイプ + 2バイトのコード + 4バイトの値）
const EventSize = 24

// Event は入力イベントを表す構造体（input_event構造体と同じレイアウト）
type Event struct {
	TimeSec  int64  // イベント発生時刻（秒）
	TimeUsec int64  // イベント発生時刻（マイクロ秒）
	Type     uint16 // イベントタイプ
	Code     uint16 // イベントコード
	Value    int32  // イベント値
}

// ParseEvent は24バイトのバッファを固定オフセットでEventにデコードする
// バッファ長が一致しない場合はABI不一致としてエラーを返す
func ParseEvent(buf []byte) (Event, error) {
	if len(buf) != EventSize {
		return Event{}, fmt.Errorf("イベントフレーム長が不正です: %d バイト（期待値 %d バイト）", len(buf), EventSize)
	}

	var e Event
	e.TimeSec = int64(binary.LittleEndian.Uint64(buf[0:8]))
	e.TimeUsec = int64(binary.LittleEndian.Uint64(buf[8:16]))
	e.Type = binary.LittleEndian.Uint16(buf[16:18])
	e.Code = binary.LittleEndian.Uint16(buf[18:20])
	e.Value = int32(binary.LittleEndian.Uint32(buf[20:24]))
	return e, nil
}

// Marshal はEventを24バイトのリトルエンディアン表現にエンコードする
func (e Event) Marshal() []byte {
	buf := make([]byte, EventSize)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(e.TimeSec))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(e.TimeUsec))
	binary.LittleEndian.PutUint16(buf[16:18], e.Type)
	binary.LittleEndian.PutUint16(buf[18:20], e.Code)
	binary.LittleEndian.PutUint32(buf[20:24], uint32(e.Value))
	return buf
}

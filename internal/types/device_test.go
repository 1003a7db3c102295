package types

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Olbrasoft/SpeechToText-sub000/internal/consts"
)

func TestNewKeyboardUserDevTruncatesLongName(t *testing.T) {
	dev := NewKeyboardUserDev(strings.Repeat("x", 100))

	// 79バイトの'x'とインデックス79のNULに切り詰められる
	expected := append(bytes.Repeat([]byte{'x'}, 79), 0)
	assert.Equal(t, expected, dev.Name[:])
}

func TestNewKeyboardUserDevKeepsShortNameTerminated(t *testing.T) {
	dev := NewKeyboardUserDev("keyboard")

	assert.Equal(t, []byte("keyboard"), dev.Name[:8])
	assert.Equal(t, byte(0), dev.Name[8])
}

func TestNewKeyboardUserDevIdentity(t *testing.T) {
	dev := NewKeyboardUserDev("keyboard")

	assert.Equal(t, uint16(consts.BusUsb), dev.ID.Bustype)
	assert.Equal(t, uint16(VirtualVendor), dev.ID.Vendor)
	assert.Equal(t, uint16(VirtualProduct), dev.ID.Product)
	assert.Equal(t, uint16(VirtualVersion), dev.ID.Version)
	assert.Equal(t, uint32(0), dev.EffectsMax)
}

package features

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// 入力デバイスレジストリのパス
const procInputDevicesPath = "/proc/bus/input/devices"

// FindDevice は名前にpatternを含む入力デバイスを検索してイベントデバイスのパスを返す
// 見つからない場合は空文字列を返す（未接続は正常な状態でありエラーではない）
func FindDevice(pattern string) (string, error) {
	f, err := os.Open(procInputDevicesPath)
	if err != nil {
		return "", fmt.Errorf("デバイス一覧を開くのに失敗しました: %w", err)
	}
	defer f.Close()

	return findDeviceIn(f, pattern)
}

// findDeviceIn はデバイス一覧のテキストからpatternに一致するデバイスを探す
// 一覧は空行区切りのブロックで構成され、N:行がデバイス名、H:行がハンドラを表す
// 名前の照合は大文字小文字を区別する部分一致で行う
func findDeviceIn(r io.Reader, pattern string) (string, error) {
	scanner := bufio.NewScanner(r)
	matched := false
	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "N: Name="):
			name := strings.Trim(strings.TrimPrefix(line, "N: Name="), "\"")
			matched = strings.Contains(name, pattern)
		case matched && strings.HasPrefix(line, "H: Handlers="):
			for _, handler := range strings.Fields(strings.TrimPrefix(line, "H: Handlers=")) {
				if strings.HasPrefix(handler, "event") {
					return "/dev/input/" + handler, nil
				}
			}
		case line == "":
			matched = false
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("デバイス一覧の読み取りに失敗しました: %w", err)
	}

	return "", nil
}

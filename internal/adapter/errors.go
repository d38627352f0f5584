package adapter

import (
	"errors"
	"fmt"
)

// ErrUnsupported は、意図的に実装していない操作が呼ばれたことを示します。
var ErrUnsupported = errors.New("この操作はサポートされていません")

// ParseError は、期待した要素が文書に存在しなかったことを示します（サイトのマークアップ変更など）。
type ParseError struct {
	Op       string
	URL      string
	Selector string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%sの解析に失敗しました: 要素 '%s' が見つかりません (URL: %s)", e.Op, e.Selector, e.URL)
}

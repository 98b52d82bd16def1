package framer

import (
	"bufio"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/valyala/bytebufferpool"

	"github.com/lk2023060901/relaychat-go/pkg/util/merr"
)

// Framer 抽象了基于行的打包/解包能力。
//
// 约定：
//   - 一帧数据即一行文本，以单个 '\n' 结尾，没有长度前缀，也不做转义；
//   - 消息本身不允许包含 '\n'，读取时会去掉行尾的 "\n" 或 "\r\n"。
type Framer interface {
	// WriteLine 将一行文本追加换行符后一次性写入 w。
	WriteLine(w io.Writer, line string) error

	// ReadLine 从 r 中读取一行文本（不含行尾换行符）。
	ReadLine(r *bufio.Reader) (string, error)
}

// LineFramer 使用换行符作为帧边界，适用于 TCP 等流式连接。
type LineFramer struct {
	// MaxLineSize 为允许的最大行长度（不含换行符），单位字节。
	// 为 0 时使用默认值 DefaultMaxLineSize。
	MaxLineSize int
}

// DefaultMaxLineSize 为默认的最大行长度。
const DefaultMaxLineSize = 64 * 1024

var _ Framer = (*LineFramer)(nil)

// NewLineFramer 创建一个行帧编码器。
// maxLineSize <= 0 时使用默认值。
func NewLineFramer(maxLineSize int) *LineFramer {
	if maxLineSize <= 0 {
		maxLineSize = DefaultMaxLineSize
	}
	return &LineFramer{
		MaxLineSize: maxLineSize,
	}
}

// ValidateLine 检查一条待发送的消息是否满足行协议约束。
func ValidateLine(line string) error {
	if strings.ContainsRune(line, '\n') {
		return merr.WrapErrLineInvalid("embedded newline")
	}
	return nil
}

// WriteLine 将 line 编码为一帧并写入。
//
// 行内容与换行符通过同一次 Write 写出，避免并发写入时帧被拆开。
func (f *LineFramer) WriteLine(w io.Writer, line string) error {
	if err := ValidateLine(line); err != nil {
		return err
	}
	if len(line) > f.effectiveMaxSize() {
		return merr.WrapErrLineTooLong(len(line), f.effectiveMaxSize())
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	_, _ = buf.WriteString(line)
	_ = buf.WriteByte('\n')

	if _, err := w.Write(buf.B); err != nil {
		return errors.Wrap(err, "framer: write line failed")
	}
	return nil
}

// ReadLine 从流中读取一行。
//
// 行为：
//   - 对端在行中途关闭连接时，已读到的半行作为最后一行返回，下一次调用返回 io.EOF；
//   - 超过 MaxLineSize 的行返回 ErrLineTooLong，连接上的后续数据不再可信。
func (f *LineFramer) ReadLine(r *bufio.Reader) (string, error) {
	limit := f.effectiveMaxSize()

	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		// 上限包含行尾的 "\r\n"。
		if len(line)+len(chunk) > limit+2 {
			return "", merr.WrapErrLineTooLong(len(line)+len(chunk), limit)
		}
		line = append(line, chunk...)

		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) && len(line) > 0 {
			break
		}
		return "", err
	}

	line = trimEOL(line)
	if len(line) > limit {
		return "", merr.WrapErrLineTooLong(len(line), limit)
	}
	return string(line), nil
}

func (f *LineFramer) effectiveMaxSize() int {
	if f == nil || f.MaxLineSize <= 0 {
		return DefaultMaxLineSize
	}
	return f.MaxLineSize
}

func trimEOL(b []byte) []byte {
	n := len(b)
	if n > 0 && b[n-1] == '\n' {
		n--
		if n > 0 && b[n-1] == '\r' {
			n--
		}
	}
	return b[:n]
}

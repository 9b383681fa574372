package storage

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/shouni/go-site-crawler/pkg/types"
)

// ErrPersistence はストレージへの読み書きに失敗したことを示します。全てのエラーがこれをラップします。
var ErrPersistence = errors.New("storage: 永続化に失敗しました")

const (
	dirPerm  os.FileMode = 0o755
	filePerm os.FileMode = 0o644
)

// Store はルートディレクトリ配下にURL集合と出力ファイルを保存する永続化層です。
type Store struct {
	fs   afero.Fs
	root string
}

// New はファイルシステムとルートディレクトリから Store を作成します。fs が nil の場合はOSのファイルシステムを使います。
func New(fs afero.Fs, root string) (*Store, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("%w: ストレージのルートパスが空です", ErrPersistence)
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Store{fs: fs, root: filepath.Clean(root)}, nil
}

// Root はルートディレクトリを返します。
func (s *Store) Root() string { return s.root }

// EnsureStorage はルートディレクトリが存在しなければ作成します。
func (s *Store) EnsureStorage() error {
	if err := s.fs.MkdirAll(s.root, dirPerm); err != nil {
		return fmt.Errorf("%w: ディレクトリの作成に失敗しました (%s): %w", ErrPersistence, s.root, err)
	}
	return nil
}

// LoadSet はスロットに保存されたURL集合を読み込みます。スロットが存在しない場合は false を返します。
// 空行は無視し、CRLF の改行も受け付けます。
func (s *Store) LoadSet(slot string) (types.URLSet, bool, error) {
	path := s.path(slot)

	exists, err := afero.Exists(s.fs, path)
	if err != nil {
		return types.URLSet{}, false, fmt.Errorf("%w: スロットの確認に失敗しました (%s): %w", ErrPersistence, path, err)
	}
	if !exists {
		return types.URLSet{}, false, nil
	}

	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return types.URLSet{}, false, fmt.Errorf("%w: スロットの読み込みに失敗しました (%s): %w", ErrPersistence, path, err)
	}

	set := types.NewURLSet()
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimSuffix(scanner.Text(), "\r"))
		if line != "" {
			set.Add(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return types.URLSet{}, false, fmt.Errorf("%w: スロットの解析に失敗しました (%s): %w", ErrPersistence, path, err)
	}
	return set, true, nil
}

// SaveSet はURL集合を1行1URL (辞書順) でスロットに上書き保存します。
func (s *Store) SaveSet(set types.URLSet, slot string) error {
	var buf bytes.Buffer
	for _, u := range set.Items() {
		buf.WriteString(u)
		buf.WriteByte('\n')
	}

	path := s.path(slot)
	if err := afero.WriteFile(s.fs, path, buf.Bytes(), filePerm); err != nil {
		return fmt.Errorf("%w: スロットの保存に失敗しました (%s): %w", ErrPersistence, path, err)
	}
	return nil
}

// CreateOutput はルート配下に出力ファイルを新規作成します。
// 同名のファイルが既にある場合は上書きせず、os.ErrExist をラップしたエラーを返します。
func (s *Store) CreateOutput(name string) (io.WriteCloser, error) {
	path := s.path(name)
	f, err := s.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerm)
	if err != nil {
		return nil, fmt.Errorf("%w: 出力ファイルの作成に失敗しました (%s): %w", ErrPersistence, path, err)
	}
	return f, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.root, name)
}

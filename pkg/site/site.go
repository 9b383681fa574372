// Package site はクロール対象サイトのYAML定義 (ベースアドレス、探索方法、抽出チャネル) を扱います。
package site

import (
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/shouni/go-site-crawler/pkg/frontier"
	"github.com/shouni/go-site-crawler/pkg/query"
	"github.com/shouni/go-site-crawler/pkg/types"
)

//go:embed sites.yaml
var defaultSites []byte

var (
	// ErrSiteNotFound は指定された名前のサイト定義がない場合のエラーです。
	ErrSiteNotFound = errors.New("site: サイト定義が見つかりません")
	// ErrInvalidSite はサイト定義の内容が不正な場合のエラーです。
	ErrInvalidSite = errors.New("site: サイト定義が不正です")
)

// channelName はファイル名に埋め込めるチャネル名です。
var channelName = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// File はサイト定義ファイル全体です。
type File struct {
	Sites map[string]*Site `yaml:"sites"`
}

// Site は1つのクロール対象の定義です。
type Site struct {
	Name         string        `yaml:"-"`
	BaseURL      string        `yaml:"base_url"`
	Storage      string        `yaml:"storage"`
	Politeness   time.Duration `yaml:"politeness"`
	FrontierSlot string        `yaml:"frontier_slot"`

	Paginated     *Paginated     `yaml:"paginated"`
	NavMenu       *NavMenu       `yaml:"nav_menu"`
	MixedSections *MixedSections `yaml:"mixed_sections"`
	Feed          *Feed          `yaml:"feed"`

	// ChannelExprs はチャネル名からクエリ式への対応です。
	ChannelExprs map[string]string `yaml:"channels"`
}

type Paginated struct {
	Listing  string `yaml:"listing"`
	Param    string `yaml:"param"`
	PageSize int    `yaml:"page_size"`
	Max      int    `yaml:"max"`
	Links    string `yaml:"links"`
}

type NavMenu struct {
	Address     string `yaml:"address"`
	TopLinks    string `yaml:"top_links"`
	Toggle      string `yaml:"toggle"`
	MobileLinks string `yaml:"mobile_links"`
	SubLinks    string `yaml:"sub_links"`
}

type MixedSections struct {
	Address   string `yaml:"address"`
	Primary   string `yaml:"primary"`
	Secondary string `yaml:"secondary"`
}

type Feed struct {
	Feeds []string `yaml:"feeds"`
}

// ----------------------------------------------------------------------
// 読み込み
// ----------------------------------------------------------------------

// Default は組み込みのサイト定義を返します。
func Default() (*File, error) {
	return Parse(defaultSites)
}

// Load はファイルシステム上のサイト定義を読み込みます。fs が nil の場合はOSのファイルシステムを使います。
func Load(fs afero.Fs, path string) (*File, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("サイト定義ファイルの読み込みに失敗しました (%s): %w", path, err)
	}
	return Parse(data)
}

// Parse はYAMLを解析し、全サイトを検証します。
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: YAMLの解析に失敗しました: %w", ErrInvalidSite, err)
	}
	if len(f.Sites) == 0 {
		return nil, fmt.Errorf("%w: sites が空です", ErrInvalidSite)
	}

	for _, name := range f.Names() {
		s := f.Sites[name]
		if s == nil {
			return nil, fmt.Errorf("%w (%s): 定義が空です", ErrInvalidSite, name)
		}
		s.Name = name
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}
	return &f, nil
}

// Names はサイト名を辞書順に返します。
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Sites))
	for name := range f.Sites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Site は名前でサイト定義を取得します。
func (f *File) Site(name string) (*Site, error) {
	s, ok := f.Sites[name]
	if !ok || s == nil {
		return nil, fmt.Errorf("%w: %q (定義済み: %s)", ErrSiteNotFound, name, strings.Join(f.Names(), ", "))
	}
	return s, nil
}

// ----------------------------------------------------------------------
// 検証と変換
// ----------------------------------------------------------------------

// Validate はサイト定義を検証します。クエリ式のコンパイルもここで行われます。
func (s *Site) Validate() error {
	// 1. ベースアドレス
	u, err := url.Parse(strings.TrimSpace(s.BaseURL))
	if err != nil || !u.IsAbs() || u.Host == "" {
		return s.invalid("base_url は絶対URLである必要があります: %q", s.BaseURL)
	}
	if s.Politeness < 0 {
		return s.invalid("politeness は負の値にできません: %s", s.Politeness)
	}

	// 2. 探索方法とチャネル
	if _, err := s.Strategy(); err != nil {
		return err
	}
	if _, err := s.Channels(); err != nil {
		return err
	}
	return nil
}

// Strategy は探索方法の定義から frontier.Strategy を作成します。
func (s *Site) Strategy() (frontier.Strategy, error) {
	count := 0
	for _, defined := range []bool{s.Paginated != nil, s.NavMenu != nil, s.MixedSections != nil, s.Feed != nil} {
		if defined {
			count++
		}
	}
	if count != 1 {
		return nil, s.invalid("探索方法 (paginated, nav_menu, mixed_sections, feed) は1つだけ指定してください (指定数: %d)", count)
	}

	var (
		strategy frontier.Strategy
		err      error
	)
	switch {
	case s.Paginated != nil:
		strategy, err = s.paginated(s.Paginated)
	case s.NavMenu != nil:
		strategy, err = s.navMenu(s.NavMenu)
	case s.MixedSections != nil:
		strategy, err = s.mixedSections(s.MixedSections)
	default:
		strategy = frontier.FeedListing{Feeds: s.Feed.Feeds}
	}
	if err != nil {
		return nil, err
	}

	if err := strategy.Validate(); err != nil {
		return nil, fmt.Errorf("%w (%s): %w", ErrInvalidSite, s.Name, err)
	}
	return strategy, nil
}

func (s *Site) paginated(p *Paginated) (frontier.Strategy, error) {
	links, err := s.query("paginated.links", p.Links, true)
	if err != nil {
		return nil, err
	}
	return frontier.PaginatedListing{
		Listing:  p.Listing,
		Param:    p.Param,
		PageSize: p.PageSize,
		Max:      p.Max,
		Links:    links,
	}, nil
}

func (s *Site) navMenu(n *NavMenu) (frontier.Strategy, error) {
	var (
		walk = frontier.NavMenuWalk{Address: n.Address}
		err  error
	)
	if walk.TopLinks, err = s.query("nav_menu.top_links", n.TopLinks, true); err != nil {
		return nil, err
	}
	if walk.Toggle, err = s.query("nav_menu.toggle", n.Toggle, false); err != nil {
		return nil, err
	}
	if walk.MobileLinks, err = s.query("nav_menu.mobile_links", n.MobileLinks, false); err != nil {
		return nil, err
	}
	if walk.SubLinks, err = s.query("nav_menu.sub_links", n.SubLinks, false); err != nil {
		return nil, err
	}
	return walk, nil
}

func (s *Site) mixedSections(m *MixedSections) (frontier.Strategy, error) {
	primary, err := s.query("mixed_sections.primary", m.Primary, true)
	if err != nil {
		return nil, err
	}
	secondary, err := s.query("mixed_sections.secondary", m.Secondary, true)
	if err != nil {
		return nil, err
	}
	return frontier.MixedSectionListing{Address: m.Address, Primary: primary, Secondary: secondary}, nil
}

// Channels はチャネル定義を名前順の types.ChannelSet に変換します。
func (s *Site) Channels() (types.ChannelSet, error) {
	if len(s.ChannelExprs) == 0 {
		return nil, s.invalid("channels が空です")
	}

	names := make([]string, 0, len(s.ChannelExprs))
	for name := range s.ChannelExprs {
		names = append(names, name)
	}
	sort.Strings(names)

	channels := make(types.ChannelSet, 0, len(names))
	for _, name := range names {
		if !channelName.MatchString(name) {
			return nil, s.invalid("チャネル名に使えない文字が含まれています: %q", name)
		}
		q, err := s.query("channels."+name, s.ChannelExprs[name], true)
		if err != nil {
			return nil, err
		}
		channels = append(channels, types.Channel{Name: name, Query: q})
	}
	return channels, nil
}

func (s *Site) query(field, expr string, required bool) (query.Query, error) {
	if strings.TrimSpace(expr) == "" {
		if required {
			return query.Query{}, s.invalid("%s が空です", field)
		}
		return query.Query{}, nil
	}
	q, err := query.Parse(expr)
	if err != nil {
		return query.Query{}, fmt.Errorf("%w (%s.%s): %w", ErrInvalidSite, s.Name, field, err)
	}
	return q, nil
}

func (s *Site) invalid(format string, args ...any) error {
	return fmt.Errorf("%w (%s): %s", ErrInvalidSite, s.Name, fmt.Sprintf(format, args...))
}

package model

// SortMode は一覧の並び順です。
type SortMode int

const (
	SortNewest SortMode = iota
	SortTrending
	SortPopular
	SortRecommended
	SortBest
)

// SortModes は、フィルタUIに表示する順序で全ての並び順を返します。
func SortModes() []SortMode {
	return []SortMode{SortTrending, SortNewest, SortPopular, SortRecommended, SortBest}
}

// PathValue は、URLパスに埋め込む並び順の値を返します。
func (s SortMode) PathValue() string {
	switch s {
	case SortTrending:
		return "trending"
	case SortPopular:
		return "popular"
	case SortRecommended:
		return "recommended"
	case SortBest:
		return "best"
	default:
		return "newest"
	}
}

// Label はフィルタUI用の表示名です。
func (s SortMode) Label() string {
	switch s {
	case SortTrending:
		return "Trending"
	case SortPopular:
		return "Popular"
	case SortRecommended:
		return "Recommended"
	case SortBest:
		return "Best"
	default:
		return "Newest"
	}
}

// ParseSortMode は PathValue の逆変換です。未知の値は SortNewest になります。
func ParseSortMode(s string) SortMode {
	for _, m := range SortModes() {
		if m.PathValue() == s {
			return m
		}
	}
	return SortNewest
}

// FacetKind は、フィルタ語彙の種類です。
type FacetKind int

const (
	FacetTags FacetKind = iota
	FacetModelTags
)

func (k FacetKind) String() string {
	if k == FacetModelTags {
		return "model-tags"
	}
	return "tags"
}

// FacetOption は、語彙の1項目やフィルタグループの選択肢（表示名とクエリ値の組）です。
type FacetOption struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// SearchFacets は、検索・絞り込みの条件です。
// Tags が1つでも選択されている場合、ModelTags は無視されます。
type SearchFacets struct {
	Query     string      `json:"query,omitempty"`
	Kind      ContentKind `json:"kind"`
	Sort      SortMode    `json:"sort"`
	Tags      []string    `json:"tags,omitempty"`
	ModelTags []string    `json:"model_tags,omitempty"`
}

// FilterGroup は、ホストUIに渡すフィルタ一覧の1グループです。
type FilterGroup struct {
	Key      string        `json:"key"`
	Header   string        `json:"header"`
	Multi    bool          `json:"multi"`
	Options  []FacetOption `json:"options"`
	Selected []string      `json:"selected,omitempty"`
	Note     string        `json:"note,omitempty"`
}

package crawler

// Selectors locate feed tiles and detail-view fields on the page
type Selectors struct {
	Item    string `yaml:"item"`
	Link    string `yaml:"link"`
	Image   string `yaml:"image"`
	Loading string `yaml:"loading"`

	DetailReady     string `yaml:"detail_ready"`
	DetailKey       string `yaml:"detail_key"`
	DetailImage     string `yaml:"detail_image"`
	DetailTime      string `yaml:"detail_time"`
	Likes           string `yaml:"likes"`
	HeaderCollabs   string `yaml:"header_collaborators"`
	Caption         string `yaml:"caption"`
	CaptionMentions string `yaml:"caption_mentions"`
	Comment         string `yaml:"comment"`
	CommentAuthor   string `yaml:"comment_author"`
	CommentText     string `yaml:"comment_text"`
	CommentTime     string `yaml:"comment_time"`
	CommentTotal    string `yaml:"comment_total"`

	ProfileName  string `yaml:"profile_name"`
	ProfileBio   string `yaml:"profile_bio"`
	ProfilePhoto string `yaml:"profile_photo"`
	ProfileStats string `yaml:"profile_stats"`
}

// DefaultSelectors returns the profile grid and post modal selectors
func DefaultSelectors() Selectors {
	return Selectors{
		Item:    "div.x1lliihq",
		Link:    "a",
		Image:   "img",
		Loading: ".W1Bne",

		DetailReady:     "div._aagv img",
		DetailKey:       ".eo2As .c-Yi7",
		DetailImage:     "div._aagv img",
		DetailTime:      "time.x1p4m5qa",
		Likes:           "section a[href$='/liked_by/'] span",
		HeaderCollabs:   "div._aaqt._aaqu a",
		Caption:         "div.xt0psk2 h1",
		CaptionMentions: "a",
		Comment:         "ul._a9ym",
		CommentAuthor:   "h3 a",
		CommentText:     "span._aacl",
		CommentTime:     "time",
		CommentTotal:    "a[href$='/comments/'] span",

		ProfileName:  "h2 span",
		ProfileBio:   ".-vDIg span",
		ProfilePhoto: "._6q-tv",
		ProfileStats: ".xc3tme8 span",
	}
}

// merge fills empty fields of s from defaults
func (s Selectors) merge(defaults Selectors) Selectors {
	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fill(&s.Item, defaults.Item)
	fill(&s.Link, defaults.Link)
	fill(&s.Image, defaults.Image)
	fill(&s.Loading, defaults.Loading)
	fill(&s.DetailReady, defaults.DetailReady)
	fill(&s.DetailKey, defaults.DetailKey)
	fill(&s.DetailImage, defaults.DetailImage)
	fill(&s.DetailTime, defaults.DetailTime)
	fill(&s.Likes, defaults.Likes)
	fill(&s.HeaderCollabs, defaults.HeaderCollabs)
	fill(&s.Caption, defaults.Caption)
	fill(&s.CaptionMentions, defaults.CaptionMentions)
	fill(&s.Comment, defaults.Comment)
	fill(&s.CommentAuthor, defaults.CommentAuthor)
	fill(&s.CommentText, defaults.CommentText)
	fill(&s.CommentTime, defaults.CommentTime)
	fill(&s.CommentTotal, defaults.CommentTotal)
	fill(&s.ProfileName, defaults.ProfileName)
	fill(&s.ProfileBio, defaults.ProfileBio)
	fill(&s.ProfilePhoto, defaults.ProfilePhoto)
	fill(&s.ProfileStats, defaults.ProfileStats)
	return s
}

package feed

// Post is a feed entry.
type Post struct {
	ID                 int       `json:"id"`
	Title              string    `json:"title"`
	Content            string    `json:"content"`
	AuthorUsername     string    `json:"author_username"`
	AuthorProfileImage string    `json:"author_profile_image,omitempty"`
	Category           string    `json:"category"`
	CategoryName       string    `json:"category_name"`
	IsNSFW             bool      `json:"is_nsfw"`
	IsLiked            bool      `json:"is_liked"`
	LikeCount          int       `json:"like_count"`
	CreatedAt          string    `json:"created_at"`
	Comments           []Comment `json:"comments"`
}

// Comment is a reply to a post.
type Comment struct {
	ID                 int    `json:"id"`
	Content            string `json:"content"`
	AuthorUsername     string `json:"author_username"`
	AuthorProfileImage string `json:"author_profile_image,omitempty"`
	CreatedAt          string `json:"created_at"`
}

// PaginatedResponse is a page of a list endpoint.
type PaginatedResponse[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// HasNext reports whether another page follows.
func (p PaginatedResponse[T]) HasNext() bool {
	return p.Next != nil && *p.Next != ""
}

// PostListResponse is a page of posts.
type PostListResponse = PaginatedResponse[Post]

// CommentListResponse lists the comments of a post.
type CommentListResponse struct {
	Count    int       `json:"count"`
	Comments []Comment `json:"comments"`
}

// Category groups posts.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CreatePostPayload is the body of a new post.
type CreatePostPayload struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	Category  string `json:"category,omitempty"`
	IsNSFW    bool   `json:"is_nsfw"`
	IsProfane bool   `json:"is_profane"`
}

// CreatePostResponse acknowledges a new post.
type CreatePostResponse struct {
	Message string `json:"message"`
	PostID  int    `json:"post_id"`
	Author  string `json:"author"`
}

// User is the account of the session.
type User struct {
	Username       string `json:"username"`
	Email          string `json:"email,omitempty"`
	ProfileImg     string `json:"profile_img,omitempty"`
	IsPassVerified bool   `json:"is_pass_verified"`
}

// SignupRequest registers a new account.
type SignupRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword,omitempty"`
}

// ProfileImageResponse acknowledges a profile image upload.
type ProfileImageResponse struct {
	ProfileImg string `json:"profile_img"`
}

// LikeResponse is the like state of a post after toggling it.
type LikeResponse struct {
	IsLiked   bool `json:"is_liked"`
	LikeCount int  `json:"like_count"`
}

// InteractionType classifies a recorded interaction.
type InteractionType string

// InteractionView records how long a post was on screen.
const InteractionView InteractionType = "VIEW"

// InteractResponse is the acknowledgement of an interaction or report.
type InteractResponse map[string]any

// SearchResult is a post matched by semantic search.
type SearchResult struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Preview string  `json:"preview"`
	Author  string  `json:"author"`
	Score   float64 `json:"score"`
}

// SearchResponse lists search results.
type SearchResponse struct {
	Count   int            `json:"count"`
	Results []SearchResult `json:"results"`
}

// UploadImageResponse describes an uploaded image.
type UploadImageResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

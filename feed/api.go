package feed

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/gorilla/schema"

	"github.com/socialfeed/feedclient/client"
)

// Set an Encoder instance as a package global, because it caches
// meta-data about structs, and an instance can be shared safely.
var encoder = schema.NewEncoder()

// ListParams selects a page of a post list.
type ListParams struct {
	Page     int `schema:"page,omitempty"`
	PageSize int `schema:"page_size,omitempty"`
}

type searchParams struct {
	Query string `schema:"q"`
}

func encodeQuery(src any) (url.Values, error) {
	values := url.Values{}

	if err := encoder.Encode(src, values); err != nil {
		return nil, fmt.Errorf("encoding query: %w", err)
	}

	return values, nil
}

// API is the feed REST API.
type API struct {
	client *client.Client
}

// New returns a new API sending requests with c.
func New(c *client.Client) *API {
	return &API{
		client: c,
	}
}

func (a *API) listPosts(ctx context.Context, path string, params ListParams) (PostListResponse, error) {
	query, err := encodeQuery(params)
	if err != nil {
		return PostListResponse{}, err
	}

	var response PostListResponse

	if err := a.client.Get(ctx, path, query, &response); err != nil {
		return PostListResponse{}, err
	}

	return response, nil
}

// ListPosts returns a page of the feed.
func (a *API) ListPosts(ctx context.Context, params ListParams) (PostListResponse, error) {
	return a.listPosts(ctx, "/posts/", params)
}

// ListMyPosts returns a page of the posts written by the session user.
func (a *API) ListMyPosts(ctx context.Context, params ListParams) (PostListResponse, error) {
	return a.listPosts(ctx, "/posts/my/", params)
}

// ListLikedPosts returns a page of the posts liked by the session user.
func (a *API) ListLikedPosts(ctx context.Context, params ListParams) (PostListResponse, error) {
	return a.listPosts(ctx, "/posts/my/likes/", params)
}

// Recommended returns a page of recommended posts (the shorts feed).
func (a *API) Recommended(ctx context.Context, page int) (PostListResponse, error) {
	if page < 1 {
		page = 1
	}

	return a.listPosts(ctx, "/posts/recommended/", ListParams{Page: page})
}

// CreatePost publishes a post.
func (a *API) CreatePost(ctx context.Context, payload CreatePostPayload) (CreatePostResponse, error) {
	var response CreatePostResponse

	if err := a.client.Post(ctx, "/posts/create/", payload, &response); err != nil {
		return CreatePostResponse{}, err
	}

	return response, nil
}

// Categories lists the post categories.
func (a *API) Categories(ctx context.Context) ([]Category, error) {
	var categories []Category

	if err := a.client.Get(ctx, "/posts/categories/", nil, &categories); err != nil {
		return nil, err
	}

	return categories, nil
}

// Comments lists the comments of a post.
func (a *API) Comments(ctx context.Context, postID int) (CommentListResponse, error) {
	var response CommentListResponse

	if err := a.client.Get(ctx, postPath(postID, "comments"), nil, &response); err != nil {
		return CommentListResponse{}, err
	}

	return response, nil
}

// CreateComment adds a comment to a post.
func (a *API) CreateComment(ctx context.Context, postID int, content string) (Comment, error) {
	var comment Comment

	body := map[string]string{"content": content}

	if err := a.client.Post(ctx, postPath(postID, "comments"), body, &comment); err != nil {
		return Comment{}, err
	}

	return comment, nil
}

// DeleteComment removes a comment.
func (a *API) DeleteComment(ctx context.Context, commentID int) error {
	return a.client.Delete(ctx, "/posts/comments/"+strconv.Itoa(commentID)+"/", nil)
}

// ToggleLike likes a post, or unlikes it if it was liked already.
func (a *API) ToggleLike(ctx context.Context, postID int) (LikeResponse, error) {
	var response LikeResponse

	if err := a.client.Post(ctx, postPath(postID, "like"), nil, &response); err != nil {
		return LikeResponse{}, err
	}

	return response, nil
}

// Interact records an interaction with a post. Duration is in seconds.
func (a *API) Interact(ctx context.Context, postID int, interaction InteractionType, duration int) (InteractResponse, error) {
	var response InteractResponse

	body := struct {
		Type     InteractionType `json:"type"`
		Duration int             `json:"duration"`
	}{
		Type:     interaction,
		Duration: duration,
	}

	if err := a.client.Post(ctx, postPath(postID, "interact"), body, &response); err != nil {
		return nil, err
	}

	return response, nil
}

// Report flags a post for moderation.
func (a *API) Report(ctx context.Context, postID int, content string) (InteractResponse, error) {
	var response InteractResponse

	body := map[string]string{"content": content}

	if err := a.client.Post(ctx, postPath(postID, "report"), body, &response); err != nil {
		return nil, err
	}

	return response, nil
}

// Search runs a semantic search over posts.
func (a *API) Search(ctx context.Context, query string) (SearchResponse, error) {
	values, err := encodeQuery(searchParams{Query: query})
	if err != nil {
		return SearchResponse{}, err
	}

	var response SearchResponse

	if err := a.client.Get(ctx, "/posts/search/semantic/", values, &response); err != nil {
		return SearchResponse{}, err
	}

	return response, nil
}

// Signup registers an account.
func (a *API) Signup(ctx context.Context, request SignupRequest) (User, error) {
	var user User

	if err := a.client.Post(ctx, "/accounts/api/signup/", request, &user); err != nil {
		return User{}, err
	}

	return user, nil
}

// CurrentUser returns the account of the session.
func (a *API) CurrentUser(ctx context.Context) (User, error) {
	var user User

	if err := a.client.Get(ctx, "/accounts/api/user/", nil, &user); err != nil {
		return User{}, err
	}

	return user, nil
}

// UploadProfileImage replaces the profile image of the session user.
func (a *API) UploadProfileImage(ctx context.Context, image io.Reader) (ProfileImageResponse, error) {
	var response ProfileImageResponse

	if err := a.client.PostMultipart(ctx, "/accounts/api/user/image/", "file", "profile_image.jpg", image, &response); err != nil {
		return ProfileImageResponse{}, err
	}

	return response, nil
}

// UploadImage uploads an image to embed into a post.
func (a *API) UploadImage(ctx context.Context, filename string, image io.Reader) (UploadImageResponse, error) {
	var response UploadImageResponse

	if err := a.client.PostMultipart(ctx, "/posts/api/upload/image/", "image", filename, image, &response); err != nil {
		return UploadImageResponse{}, err
	}

	return response, nil
}

func postPath(postID int, resource string) string {
	return "/posts/" + strconv.Itoa(postID) + "/" + resource + "/"
}

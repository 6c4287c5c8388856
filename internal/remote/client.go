// Package remote は投稿APIのHTTPクライアントを提供する。
// JSONPlaceholder互換のREST API（/posts, /posts/{id}/comments）を対象とする。
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shokal/postfeed/internal/model"
	"github.com/shokal/postfeed/internal/security"
)

// Client は投稿APIのクライアント。
// 取得したテキストはサニタイズしてから返す。
type Client struct {
	httpClient  *http.Client
	logger      *slog.Logger
	sanitizer   security.ContentSanitizerService
	baseURL     string // テスト用にエンドポイントを差し替え可能
	maxBodySize int64
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLは末尾スラッシュの有無を問わない。
func NewClient(httpClient *http.Client, logger *slog.Logger, sanitizer security.ContentSanitizerService, baseURL string, maxBodySize int64) *Client {
	return &Client{
		httpClient:  httpClient,
		logger:      logger,
		sanitizer:   sanitizer,
		baseURL:     strings.TrimRight(baseURL, "/"),
		maxBodySize: maxBodySize,
	}
}

// FetchAll は全投稿を一括取得する。
func (c *Client) FetchAll(ctx context.Context) ([]model.Post, error) {
	return c.fetchPosts(ctx, nil)
}

// FetchPage は指定ページの投稿を取得する。
// _page と _limit クエリパラメータによるページネーションを使用する。
func (c *Client) FetchPage(ctx context.Context, page, limit int) ([]model.Post, error) {
	query := url.Values{}
	query.Set("_page", strconv.Itoa(page))
	query.Set("_limit", strconv.Itoa(limit))
	return c.fetchPosts(ctx, query)
}

// fetchPosts は /posts エンドポイントを呼び出して投稿一覧を取得する。
func (c *Client) fetchPosts(ctx context.Context, query url.Values) ([]model.Post, error) {
	reqURL := c.baseURL + "/posts"
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	body, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var posts []model.Post
	if err := json.Unmarshal(body, &posts); err != nil {
		c.logger.Error("投稿APIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	// 保存前にタイトルと本文をサニタイズする
	for i := range posts {
		posts[i].Title = c.sanitizer.SanitizePlainText(posts[i].Title)
		posts[i].Body = c.sanitizer.SanitizePlainText(posts[i].Body)
	}

	return posts, nil
}

// FetchComments は指定投稿のコメント一覧を取得する。
func (c *Client) FetchComments(ctx context.Context, postID int) ([]model.Comment, error) {
	reqURL := fmt.Sprintf("%s/posts/%d/comments", c.baseURL, postID)

	body, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var comments []model.Comment
	if err := json.Unmarshal(body, &comments); err != nil {
		c.logger.Error("コメントAPIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
			slog.Int("post_id", postID),
		)
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	for i := range comments {
		comments[i].Name = c.sanitizer.SanitizePlainText(comments[i].Name)
		comments[i].Body = c.sanitizer.SanitizePlainText(comments[i].Body)
	}

	return comments, nil
}

// get はGETリクエストを実行し、レスポンスボディを返す。
// ボディの読み取りはmaxBodySizeで制限される。
func (c *Client) get(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Postfeed/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("投稿APIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.String("url", reqURL),
		)
		return nil, fmt.Errorf("投稿APIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("投稿APIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("url", reqURL),
		)
		return nil, fmt.Errorf("投稿APIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize))
	if err != nil {
		c.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	return body, nil
}

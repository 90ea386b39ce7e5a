// Spotify API implementation of [Catalog]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/desertthunder/festlist/internal/models"
	"github.com/desertthunder/festlist/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// Spotify rejects playlist additions above this many URIs per call.
	spotifyTrackBatchSize = 100
)

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Country     string         `json:"country"`
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Genres     []string       `json:"genres"`
	Images     []SpotifyImage `json:"images"`
	Popularity int            `json:"popularity"`
	URI        string         `json:"uri"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	ReleaseDate string         `json:"release_date"`
	Images      []SpotifyImage `json:"images"`
	URI         string         `json:"uri"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	DurationMS int             `json:"duration_ms"`
	Explicit   bool            `json:"explicit"`
	Popularity int             `json:"popularity"`
	URI        string          `json:"uri"`
}

// SpotifyArtistSearch represents the artist portion of a search response.
type SpotifyArtistSearch struct {
	Artists struct {
		Items []SpotifyArtist `json:"items"`
		Total int             `json:"total"`
	} `json:"artists"`
}

// SpotifyService implements the [Catalog] interface for Spotify API
// interactions. Uses [oauth2] client credentials for catalog reads and
// per-call user tokens for playlist writes.
type SpotifyService struct {
	config     *oauth2.Config
	appConfig  *clientcredentials.Config
	token      *oauth2.Token
	httpClient *http.Client
	baseURL    string
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("missing client_id in credentials")
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("missing client_secret in credentials")
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://localhost:8080/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"user-read-private",
			"playlist-modify-public",
			"playlist-modify-private",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	appConfig := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyTokenURL,
	}

	return &SpotifyService{
		config:     config,
		appConfig:  appConfig,
		httpClient: http.DefaultClient,
		baseURL:    spotifyBaseURL,
	}, nil
}

// Authenticate installs credentials for catalog reads. Accepts an
// "access_token" or "auth_code" entry; with neither present it falls
// back to the client credentials flow, which is enough for search and
// top-tracks lookups.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	if accessToken, ok := credentials["access_token"]; ok && accessToken != "" {
		s.token = &oauth2.Token{AccessToken: accessToken}
		return nil
	}

	if authCode, ok := credentials["auth_code"]; ok && authCode != "" {
		token, err := s.config.Exchange(ctx, authCode)
		if err != nil {
			return fmt.Errorf("failed to exchange auth code: %w", err)
		}
		s.token = token
		return nil
	}

	token, err := s.appConfig.Token(ctx)
	if err != nil {
		return fmt.Errorf("client credentials grant failed: %w", err)
	}
	s.token = token
	return nil
}

func (s *SpotifyService) Name() string {
	return "spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// OAuthConfig exposes the authorization-code configuration for the
// local callback server.
func (s *SpotifyService) OAuthConfig() *oauth2.Config {
	return s.config
}

// doRequest performs an authenticated HTTP request to the Spotify API.
// An empty token falls back to the service-level token installed by
// Authenticate; playlist writes pass the user's token instead.
func (s *SpotifyService) doRequest(ctx context.Context, method, endpoint, token string, body any, result any) error {
	if token == "" {
		if s.token == nil {
			return fmt.Errorf("not authenticated: call Authenticate first")
		}
		token = s.token.AccessToken
	}

	apiURL := s.baseURL + endpoint

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		buf = bytes.NewBuffer(data)
	} else {
		buf = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %v", shared.ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: spotify API status %d", shared.ClassifyStatus(resp.StatusCode), resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// SearchArtist searches the catalog for an artist by name. A quoted
// exact-phrase query runs first; when it comes back empty the search
// retries unquoted to catch near matches.
func (s *SpotifyService) SearchArtist(ctx context.Context, name string) ([]CatalogArtist, error) {
	queries := []string{fmt.Sprintf("artist:%q", name), name}

	for _, q := range queries {
		endpoint := fmt.Sprintf("/search?type=artist&limit=10&q=%s", url.QueryEscape(q))

		var response SpotifyArtistSearch
		if err := s.doRequest(ctx, "GET", endpoint, "", nil, &response); err != nil {
			return nil, err
		}

		if len(response.Artists.Items) > 0 {
			results := make([]CatalogArtist, 0, len(response.Artists.Items))
			for _, a := range response.Artists.Items {
				results = append(results, CatalogArtist{
					CatalogID:  a.ID,
					Name:       a.Name,
					Popularity: a.Popularity,
				})
			}
			return results, nil
		}
	}

	return nil, nil
}

// TopTracks retrieves up to limit of the artist's most popular tracks.
func (s *SpotifyService) TopTracks(ctx context.Context, artistID string, limit int) ([]models.Track, error) {
	endpoint := fmt.Sprintf("/artists/%s/top-tracks?market=US", url.PathEscape(artistID))

	var response struct {
		Tracks []SpotifyTrack `json:"tracks"`
	}
	if err := s.doRequest(ctx, "GET", endpoint, "", nil, &response); err != nil {
		return nil, err
	}

	if limit > 0 && len(response.Tracks) > limit {
		response.Tracks = response.Tracks[:limit]
	}

	tracks := make([]models.Track, 0, len(response.Tracks))
	for _, t := range response.Tracks {
		track := models.Track{
			CatalogID:  t.ID,
			Title:      t.Name,
			DurationMS: t.DurationMS,
			Popularity: t.Popularity,
		}
		if len(t.Artists) > 0 {
			track.ArtistName = t.Artists[0].Name
		}
		tracks = append(tracks, track)
	}

	return tracks, nil
}

// CurrentUser resolves the identity behind a user access token.
func (s *SpotifyService) CurrentUser(ctx context.Context, accessToken string) (*models.UserIdentity, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, "GET", "/me", accessToken, nil, &user); err != nil {
		return nil, err
	}
	return &models.UserIdentity{ID: user.ID, DisplayName: user.DisplayName}, nil
}

// CreatePlaylist creates an empty playlist owned by userID and returns
// its Spotify ID.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, accessToken, userID, name, description string, public bool) (string, error) {
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(userID))

	body := map[string]any{
		"name":        name,
		"description": description,
		"public":      public,
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := s.doRequest(ctx, "POST", endpoint, accessToken, body, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("%w: spotify returned playlist without an id", shared.ErrPlaylistCreateFailed)
	}

	return created.ID, nil
}

// AddTracks appends tracks to a playlist in batches of 100 URIs. Each
// batch is a separate API call; a mid-batch failure returns the count
// added so far alongside the error.
func (s *SpotifyService) AddTracks(ctx context.Context, accessToken, playlistID string, trackIDs []string) (int, error) {
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))

	added := 0
	for start := 0; start < len(trackIDs); start += spotifyTrackBatchSize {
		end := min(start+spotifyTrackBatchSize, len(trackIDs))

		uris := make([]string, 0, end-start)
		for _, id := range trackIDs[start:end] {
			uris = append(uris, "spotify:track:"+id)
		}

		body := map[string]any{"uris": uris}
		if err := s.doRequest(ctx, "POST", endpoint, accessToken, body, nil); err != nil {
			return added, fmt.Errorf("batch starting at %d failed: %w", start, err)
		}
		added += len(uris)
	}

	return added, nil
}

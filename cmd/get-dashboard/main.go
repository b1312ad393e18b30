package main

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
)

func makeRequest(httpClient *http.Client, url string, apiKey string) ([]byte, int, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		log.Println(err)
		return []byte{}, -1, fmt.Errorf("Constructing request: %w", err)
	}

	req.Header.Set("apikey", apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", apiKey))

	resp, err := httpClient.Do(req)
	if err != nil {
		log.Println(err)
		return []byte{}, -1, fmt.Errorf("Making request: %w", err)
	}

	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Println(err)
		return []byte{}, -1, fmt.Errorf("ReadAll: %w", err)
	}

	return data, resp.StatusCode, nil
}

func main() {
	baseURL := os.Getenv("BACKEND_API_URL")
	apiKey := os.Getenv("BACKEND_API_KEY")

	if baseURL == "" || apiKey == "" {
		log.Fatal("No backend API url/key provided")
	}

	if len(os.Args) < 2 {
		log.Fatal("No user id provided")
	}

	userID := os.Args[1]

	if userID == "" {
		log.Fatal("No user id provided")
	}

	httpClient := &http.Client{}

	profileURL := fmt.Sprintf("%s/rest/v1/profiles?select=user_id,username,joined_at&user_id=eq.%s", baseURL, userID)
	data, statusCode, err := makeRequest(httpClient, profileURL, apiKey)
	if err != nil {
		log.Fatalf("Failed getting profile from backend: %v", err)
	}

	if statusCode != 200 {
		log.Printf("Backend returned non-200 status code for profile: %d - %s\n", statusCode, string(data))
	}

	fmt.Println(string(data))

	tracksURL := fmt.Sprintf("%s/rest/v1/tracks?select=id,user_id,title,duration_seconds,plays,likes,uploaded_at&user_id=eq.%s", baseURL, userID)
	data, statusCode, err = makeRequest(httpClient, tracksURL, apiKey)
	if err != nil {
		log.Fatalf("Failed getting tracks from backend: %v", err)
	}

	if statusCode != 200 {
		log.Printf("Backend returned non-200 status code for tracks: %d - %s\n", statusCode, string(data))
	}

	fmt.Println(string(data))
	fmt.Println(statusCode)
}

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
)

type LoginResponse struct {
	Token string `json:"token"`
}

func main() {
	apiAddr := os.Getenv("API_URL")
	if apiAddr == "" {
		apiAddr = "http://localhost:8081"
	}

	// 1. Login
	reqBody, _ := json.Marshal(map[string]string{"user_id": "userA"})
	resp, err := http.Post(apiAddr+"/login", "application/json", bytes.NewBuffer(reqBody))
	if err != nil {
		log.Fatal(err)
	}
	defer resp.Body.Close()

	var loginResp LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&loginResp); err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Token: %s...\n", loginResp.Token[:10])

	// 2. History, conversations and presence for userA
	for _, path := range []string{
		"/history?conversation_id=m1",
		"/conversations",
		"/channels/direct:m1/users",
	} {
		req, _ := http.NewRequest("GET", apiAddr+path, nil)
		req.Header.Add("Authorization", "Bearer "+loginResp.Token)

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			log.Fatalf("%s request failed: %v", path, err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		log.Printf("%s -> %d %s", path, resp.StatusCode, string(body))
	}
}

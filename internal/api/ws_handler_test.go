package api

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"cvforge/internal/auth"
)

func newWsAuthService(t *testing.T) *auth.AuthService {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	privatePEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
	publicDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	publicPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicDER})

	service, err := auth.NewAuthService(privatePEM, publicPEM, time.Hour, time.Hour)
	if err != nil {
		t.Fatalf("new auth service: %v", err)
	}
	return service
}

func newWsServer(t *testing.T, authService *auth.AuthService) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	handler := NewNotifyHandler(nil, authService, testLogger(), nil)
	router := gin.New()
	router.GET("/v1/ws", handler.HandleConnection)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func dialWs(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func expectClosed(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected connection to be closed")
	}
}

func TestNotifySocketRejectsGarbageFirstMessage(t *testing.T) {
	server := newWsServer(t, newWsAuthService(t))
	conn := dialWs(t, server)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	expectClosed(t, conn)
}

func TestNotifySocketRejectsInvalidToken(t *testing.T) {
	server := newWsServer(t, newWsAuthService(t))
	conn := dialWs(t, server)

	if err := conn.WriteJSON(map[string]string{"type": "auth", "token": "bogus"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	expectClosed(t, conn)
}

func TestNotifySocketRejectsRefreshToken(t *testing.T) {
	authService := newWsAuthService(t)
	server := newWsServer(t, authService)
	conn := dialWs(t, server)

	pair, err := authService.GenerateTokenPair(1)
	if err != nil {
		t.Fatalf("generate token pair: %v", err)
	}
	if err := conn.WriteJSON(map[string]string{"type": "auth", "token": pair.RefreshToken}); err != nil {
		t.Fatalf("write: %v", err)
	}
	expectClosed(t, conn)
}

// Package realtime доставляет изменения документов (профилей и заказов) живым
// подписчикам. Подписка на путь получает изменения самого пути и всех дочерних.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ChangeKind — вид изменения документа.
type ChangeKind string

const (
	ChangePut    ChangeKind = "put"
	ChangePatch  ChangeKind = "patch"
	ChangeDelete ChangeKind = "delete"
)

// Change — изменение документа по пути вида users/{id} или orders/{userId}/{orderId}.
type Change struct {
	Path string          `json:"path"`
	Kind ChangeKind      `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
	At   time.Time       `json:"at"`
}

// Broker публикует изменения и раздаёт подписки.
type Broker interface {
	Publish(ctx context.Context, change Change) error
	Subscribe(ctx context.Context, path string) (*Subscription, error)
}

// NewChange сериализует документ в изменение.
func NewChange(path string, kind ChangeKind, doc any) (Change, error) {
	change := Change{Path: path, Kind: kind, At: time.Now().UTC()}
	if doc == nil {
		return change, nil
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return Change{}, fmt.Errorf("marshal %s change: %w", path, err)
	}
	change.Data = data
	return change, nil
}

// UserPath возвращает путь профиля.
func UserPath(userID string) string {
	return "users/" + userID
}

// OrdersPath возвращает путь коллекции заказов пользователя.
func OrdersPath(userID string) string {
	return "orders/" + userID
}

// OrderPath возвращает путь заказа.
func OrderPath(userID, orderID string) string {
	return OrdersPath(userID) + "/" + orderID
}

// Matches сообщает, что изменение по changePath видно подписке на subPath.
func Matches(subPath, changePath string) bool {
	if subPath == changePath {
		return true
	}
	return strings.HasPrefix(changePath, strings.TrimSuffix(subPath, "/")+"/")
}

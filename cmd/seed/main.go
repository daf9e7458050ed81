// Command seed provisions inventory into Redis from a JSON file, replacing
// each listed product's account collection.
//
// Input format:
//
//	[
//	  {
//	    "product_id": "1001",
//	    "accounts": [
//	      {"email": "a@x.com", "password": "pw", "max_user": 5,
//	       "current_user": 0, "expired_at": "2026-12-31T00:00:00Z"}
//	    ]
//	  }
//	]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quangtd04/autodeliver/internal/adapter/storage"
	"github.com/quangtd04/autodeliver/internal/core/domain"
	"github.com/quangtd04/autodeliver/internal/obs"
)

type seedAccount struct {
	Email       string    `json:"email"`
	Password    string    `json:"password"`
	CurrentUser int       `json:"current_user"`
	MaxUser     int       `json:"max_user"`
	ExpiredAt   time.Time `json:"expired_at"`
}

type seedProduct struct {
	ProductID string        `json:"product_id"`
	Accounts  []seedAccount `json:"accounts"`
}

func main() {
	logger := obs.NewLogger()

	file := flag.String("file", "inventory.json", "inventory JSON file")
	redisAddr := flag.String("redis", "localhost:6379", "redis address")
	flag.Parse()

	raw, err := os.ReadFile(*file)
	if err != nil {
		logger.Error("read inventory file failed", "err", err)
		os.Exit(1)
	}

	var products []seedProduct
	if err := json.Unmarshal(raw, &products); err != nil {
		logger.Error("parse inventory file failed", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: *redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("redis ping failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	inventory := storage.NewRedisInventory(rdb)
	for _, p := range products {
		product := domain.Product{ID: p.ProductID}
		for i, a := range p.Accounts {
			product.Accounts = append(product.Accounts, domain.Account{
				Index:        i,
				Email:        a.Email,
				Password:     a.Password,
				CurrentUsers: a.CurrentUser,
				MaxUsers:     a.MaxUser,
				ExpiresAt:    a.ExpiredAt,
			})
		}
		if err := inventory.SeedProduct(ctx, product); err != nil {
			logger.Error("seed failed", "product_id", p.ProductID, "err", err)
			os.Exit(1)
		}
		logger.Info("seeded product", "product_id", p.ProductID, "accounts", len(product.Accounts))
	}
}

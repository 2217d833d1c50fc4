package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-supplies/internal/app"
	"github.com/odyssey-erp/odyssey-supplies/internal/platform/db"
)

type centerSeed struct {
	Name        string
	Description string
}

type workerSeed struct {
	Code   string
	Name   string
	Center string
}

var centers = []centerSeed{
	{Name: "Preparación", Description: "Área de preparación de vehículos"},
	{Name: "Lustrado", Description: "Área de lustrado y pulido"},
	{Name: "Cabinas", Description: "Cabinas de pintura"},
	{Name: "Terminación", Description: "Área de terminación y detalles finales"},
}

var workers = []workerSeed{
	{Code: "P1", Name: "Correa Juan", Center: "Preparación"},
	{Code: "P2", Name: "Girardello Claudio", Center: "Preparación"},
	{Code: "L1", Name: "Muñoz Jeremias", Center: "Lustrado"},
	{Code: "L2", Name: "Buchin Juan Manuel", Center: "Lustrado"},
	{Code: "C1", Name: "Muñoz Maximiliano", Center: "Cabinas"},
	{Code: "C2", Name: "Llanos Efrain", Center: "Cabinas"},
	{Code: "T1", Name: "Orellano Cristian", Center: "Terminación"},
}

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	ctx := context.Background()
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	fmt.Println("→ Seeding consumption centers and workers...")
	err = db.WithTx(ctx, pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return seedCenters(ctx, tx)
	})
	if err != nil {
		log.Fatalf("seed centers: %v", err)
	}
	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

// seedCenters inserts missing centers and workers; existing rows are left untouched.
func seedCenters(ctx context.Context, tx pgx.Tx) error {
	ids := make(map[string]int64, len(centers))
	for _, c := range centers {
		if _, err := tx.Exec(ctx, `INSERT INTO consumption_centers (name, description) VALUES ($1, $2)
ON CONFLICT (name) DO NOTHING`, c.Name, c.Description); err != nil {
			return fmt.Errorf("center %s: %w", c.Name, err)
		}
		var id int64
		if err := tx.QueryRow(ctx, `SELECT id FROM consumption_centers WHERE name = $1`, c.Name).Scan(&id); err != nil {
			return fmt.Errorf("center %s: %w", c.Name, err)
		}
		ids[c.Name] = id
	}
	for _, w := range workers {
		centerID, ok := ids[w.Center]
		if !ok {
			return fmt.Errorf("worker %s: unknown center %s", w.Code, w.Center)
		}
		tag, err := tx.Exec(ctx, `INSERT INTO workers (code, name, center_id) VALUES ($1, $2, $3)
ON CONFLICT (code) DO NOTHING`, w.Code, w.Name, centerID)
		if err != nil {
			return fmt.Errorf("worker %s: %w", w.Code, err)
		}
		if tag.RowsAffected() == 0 {
			fmt.Printf("  worker %s already exists\n", w.Code)
		}
	}
	return nil
}

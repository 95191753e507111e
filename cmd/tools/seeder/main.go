package main

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	var orgID string
	err = db.QueryRow("SELECT id FROM organizations WHERE slug = 'default'").Scan(&orgID)
	if err != nil {
		log.Println("Default organization not found, attempting to create...")
		err = db.QueryRow(`
			INSERT INTO organizations (name, slug) VALUES ('Default Organization', 'default')
			ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
			RETURNING id;
		`).Scan(&orgID)
		if err != nil {
			log.Fatalf("Failed to retrieve or create default organization: %v", err)
		}
	}
	log.Printf("Using Organization ID: %s", orgID)

	memberIDs := seedTeam(db, orgID)
	seedSettings(db, orgID, memberIDs["admin@commissions.dev"])
	seedDeals(db, orgID, memberIDs)

	log.Println("Seeding completed successfully!")
}

func seedTeam(db *sql.DB, orgID string) map[string]string {
	members := []struct {
		Name    string
		Email   string
		Role    string
		RateBps int32
	}{
		{"Alice Admin", "admin@commissions.dev", "admin", 0},
		{"Martin Manager", "manager@commissions.dev", "manager", 0},
		{"Tariq Caller", "tariq@commissions.dev", "telesales", 1000},
		{"Tina Caller", "tina@commissions.dev", "telesales", 1000},
		{"Ben Dealer", "ben@commissions.dev", "bdm", 10000},
		{"Bella Dealer", "bella@commissions.dev", "bdm", 10000},
	}

	fmt.Println("Seeding Team Members...")
	hash, err := argon2id.CreateHash("password123", argon2id.DefaultParams)
	if err != nil {
		log.Fatalf("Failed to hash seed password: %v", err)
	}

	ids := make(map[string]string, len(members))
	for _, m := range members {
		var id string
		err := db.QueryRow(`
			INSERT INTO team_members (organization_id, name, email, role, commission_rate_bps, active, password_hash)
			VALUES ($1, $2, $3, $4, $5, true, $6)
			ON CONFLICT (email) DO UPDATE SET
				name = EXCLUDED.name,
				role = EXCLUDED.role,
				commission_rate_bps = EXCLUDED.commission_rate_bps
			RETURNING id;
		`, orgID, m.Name, m.Email, m.Role, m.RateBps, hash).Scan(&id)
		if err != nil {
			log.Printf("Failed to seed member %s: %v", m.Email, err)
			continue
		}
		ids[m.Email] = id
	}
	return ids
}

func seedSettings(db *sql.DB, orgID, adminID string) {
	if adminID == "" {
		log.Println("Skipping settings seed: admin member missing")
		return
	}
	fmt.Println("Seeding Commission Settings...")
	_, err := db.Exec(`
		INSERT INTO organization_settings (organization_id, bdm_threshold_pence, bdm_commission_rate_bps, updated_by)
		VALUES ($1, 350000, 10000, $2)
		ON CONFLICT (organization_id) DO NOTHING;
	`, orgID, adminID)
	if err != nil {
		log.Printf("Failed to seed settings: %v", err)
	}
}

func seedDeals(db *sql.DB, orgID string, memberIDs map[string]string) {
	agentID := memberIDs["tariq@commissions.dev"]
	bdmID := memberIDs["ben@commissions.dev"]
	adminID := memberIDs["admin@commissions.dev"]
	if agentID == "" || bdmID == "" || adminID == "" {
		log.Println("Skipping deal seed: required members missing")
		return
	}

	lastMonth := time.Now().UTC().AddDate(0, -1, 0)
	deals := []struct {
		Customer  string
		Value     int64
		BuyIn     int64
		Install   int64
		Misc      int64
		Status    string
		PaidAt    *time.Time
	}{
		{"Acme Logistics", 1200000, 400000, 150000, 50000, "paid", &lastMonth},
		{"Brightside Dental", 800000, 250000, 100000, 25000, "paid", &lastMonth},
		{"Cornerstone Gyms", 600000, 200000, 80000, 20000, "invoiced", nil},
		{"Dunmore Hotels", 450000, 150000, 60000, 15000, "signed", nil},
		{"Eastgate Motors", 300000, 100000, 40000, 10000, "to_do", nil},
	}

	fmt.Println("Seeding Deals...")
	for i, d := range deals {
		initialProfit := d.Value - d.BuyIn - d.Install - d.Misc
		telesales := (initialProfit*1000 + 5000) / 10000
		remaining := initialProfit - telesales

		_, err := db.Exec(`
			INSERT INTO deals (organization_id, deal_number, customer_name,
				deal_value, buy_in_cost, installation_cost, misc_costs,
				initial_profit, telesales_commission, remaining_profit,
				telesales_agent_id, bdm_id, status, paid_at, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			ON CONFLICT (organization_id, deal_number) DO NOTHING;
		`, orgID, i+1, d.Customer,
			d.Value, d.BuyIn, d.Install, d.Misc,
			initialProfit, telesales, remaining,
			agentID, bdmID, d.Status, d.PaidAt, adminID)
		if err != nil {
			log.Printf("Failed to seed deal %s: %v", d.Customer, err)
		}
	}
}

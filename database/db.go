package database

import (
	"database/sql"
	"log"
	"sync"

	_ "github.com/lib/pq"

	"github.com/nexusworks/payments/config"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn *sql.DB
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		instance = &Datasource{Conn: con}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database connection error: %v", err)
		return nil, err
	}
	for _, create := range []func(*sql.DB) error{
		createProjectTable,
		createMilestoneTable,
		createTaskHoursTable,
		createGatewayTable,
		createPaymentMethodTable,
		createPaymentTable,
		createTransactionLogTable,
		createDisputeTable,
		createEscalationActionTable,
	} {
		if err := create(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

func createProjectTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS projects (
			id SERIAL PRIMARY KEY,
			project_id TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL DEFAULT 'active',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func createMilestoneTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS milestones (
			id SERIAL PRIMARY KEY,
			milestone_id TEXT NOT NULL UNIQUE,
			project_id TEXT NOT NULL REFERENCES projects(project_id),
			percentage INT NOT NULL,
			amount BIGINT NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			due_date TIMESTAMP,
			client_approved BOOLEAN NOT NULL DEFAULT FALSE,
			senior_developer_approved BOOLEAN NOT NULL DEFAULT FALSE,
			paid_date TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func createTaskHoursTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS task_hours (
			id SERIAL PRIMARY KEY,
			milestone_id TEXT NOT NULL,
			contributor_id TEXT NOT NULL,
			hours DOUBLE PRECISION NOT NULL DEFAULT 0,
			UNIQUE (milestone_id, contributor_id)
		)
	`)
	return err
}

func createGatewayTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS gateways (
			id SERIAL PRIMARY KEY,
			gateway_id TEXT NOT NULL UNIQUE,
			type TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			fee_percentage NUMERIC NOT NULL DEFAULT 0,
			fee_fixed BIGINT NOT NULL DEFAULT 0,
			charges_payer BOOLEAN NOT NULL DEFAULT FALSE,
			supports_refund BOOLEAN NOT NULL DEFAULT FALSE,
			supports_partial_refund BOOLEAN NOT NULL DEFAULT FALSE,
			supports_recurring BOOLEAN NOT NULL DEFAULT FALSE,
			supports_escrow BOOLEAN NOT NULL DEFAULT FALSE,
			min_amount BIGINT NOT NULL DEFAULT 0,
			max_amount BIGINT NOT NULL DEFAULT 0,
			currencies TEXT[],
			countries TEXT[],
			success_rate DOUBLE PRECISION NOT NULL DEFAULT 1,
			avg_latency_ms BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func createPaymentMethodTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS payment_methods (
			id SERIAL PRIMARY KEY,
			method_id TEXT NOT NULL UNIQUE,
			contributor_id TEXT NOT NULL,
			gateway_type TEXT NOT NULL,
			verified BOOLEAN NOT NULL DEFAULT FALSE,
			is_default BOOLEAN NOT NULL DEFAULT FALSE,
			total_paid BIGINT NOT NULL DEFAULT 0,
			payment_count BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func createPaymentTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS payments (
			id SERIAL PRIMARY KEY,
			payment_id TEXT NOT NULL UNIQUE,
			milestone_id TEXT NOT NULL REFERENCES milestones(milestone_id),
			contributor_id TEXT NOT NULL,
			method_id TEXT NOT NULL,
			gateway_type TEXT NOT NULL,
			amount BIGINT NOT NULL,
			platform_fee BIGINT NOT NULL,
			gateway_fee BIGINT NOT NULL,
			net_amount BIGINT NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			gateway_ref TEXT NOT NULL DEFAULT '',
			external_id TEXT NOT NULL DEFAULT '',
			attempts INT NOT NULL DEFAULT 0,
			expected_date TIMESTAMP,
			processed_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			meta_data JSONB,
			CHECK (amount = platform_fee + gateway_fee + net_amount)
		)
	`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_payments_external_id ON payments (external_id) WHERE external_id <> ''
	`)
	return err
}

func createTransactionLogTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS transaction_logs (
			id SERIAL PRIMARY KEY,
			log_id TEXT NOT NULL UNIQUE,
			payment_id TEXT NOT NULL,
			log_type TEXT NOT NULL,
			level TEXT NOT NULL DEFAULT 'info',
			message TEXT NOT NULL DEFAULT '',
			raw_payload JSONB,
			error_code TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func createDisputeTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS payment_disputes (
			id SERIAL PRIMARY KEY,
			dispute_id TEXT NOT NULL UNIQUE,
			payment_id TEXT NOT NULL DEFAULT '',
			milestone_id TEXT NOT NULL DEFAULT '',
			initiator_id TEXT NOT NULL,
			respondent_id TEXT NOT NULL DEFAULT '',
			dispute_type TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'opened',
			disputed_amount BIGINT NOT NULL DEFAULT 0,
			reason TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL DEFAULT '',
			resolution TEXT NOT NULL DEFAULT '',
			resolved_by TEXT NOT NULL DEFAULT '',
			resolved_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func createEscalationActionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS escalation_actions (
			id SERIAL PRIMARY KEY,
			milestone_id TEXT NOT NULL,
			threshold_days INT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (milestone_id, threshold_days)
		)
	`)
	return err
}

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	jsoniter "github.com/json-iterator/go"
	"github.com/niksmo/gallery/internal/core/domain"
	"github.com/niksmo/gallery/internal/core/port"
	"github.com/shopspring/decimal"
)

var (
	_ port.CatalogSource   = (*CatalogRepository)(nil)
	_ port.CatalogProducer = (*CatalogRepository)(nil)
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	selectCategories = `
		SELECT category_id, name, icon
		FROM categories
		ORDER BY position ASC, category_id ASC;`

	selectProducts = `
		SELECT
			product_id, title, description, category_id,
			price, original_price, stock, rating, review_count,
			featured, tags::text, image
		FROM products
		ORDER BY position ASC, product_id ASC;`

	upsertCategory = `
		INSERT INTO categories (category_id, name, icon, position)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (category_id) DO UPDATE SET
			name = EXCLUDED.name,
			icon = EXCLUDED.icon,
			position = EXCLUDED.position;`

	upsertProduct = `
		INSERT INTO products (
			product_id, title, description, category_id,
			price, original_price, stock, rating, review_count,
			featured, tags, image, position
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (product_id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			category_id = EXCLUDED.category_id,
			price = EXCLUDED.price,
			original_price = EXCLUDED.original_price,
			stock = EXCLUDED.stock,
			rating = EXCLUDED.rating,
			review_count = EXCLUDED.review_count,
			featured = EXCLUDED.featured,
			tags = EXCLUDED.tags,
			image = EXCLUDED.image,
			position = EXCLUDED.position;`
)

// A CatalogRepository reads and writes the catalog tables. Row order is
// kept through the position column.
type CatalogRepository struct {
	sqldb sqldb
}

func NewCatalogRepository(sqldb sqldb) CatalogRepository {
	return CatalogRepository{sqldb}
}

func (CatalogRepository) Name() string {
	return "sql"
}

func (r CatalogRepository) Fetch(ctx context.Context) (domain.Catalog, error) {
	const op = "CatalogRepository.Fetch"

	if err := ctx.Err(); err != nil {
		return domain.Catalog{}, fmt.Errorf("%s: %w", op, err)
	}

	categories, err := r.readCategories(ctx)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("%s: %w", op, err)
	}

	products, err := r.readProducts(ctx)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("%s: %w", op, err)
	}

	return domain.Catalog{Products: products, Categories: categories}, nil
}

func (r CatalogRepository) readCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.sqldb.QueryContext(ctx, selectCategories)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer closeRows(rows)

	cs := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Icon); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		cs = append(cs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cs, nil
}

func (r CatalogRepository) readProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.sqldb.QueryContext(ctx, selectProducts)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer closeRows(rows)

	ps := []domain.Product{}
	for rows.Next() {
		var (
			p     domain.Product
			id    string
			orig  decimal.NullDecimal
			tagsS string
			image sql.NullString
		)
		err := rows.Scan(
			&id, &p.Title, &p.Description, &p.Category,
			&p.Price, &orig, &p.Stock, &p.Rating, &p.ReviewCount,
			&p.Featured, &tagsS, &image,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}

		p.ID = domain.ProductID(id)
		if orig.Valid {
			p.OriginalPrice = &orig.Decimal
		}
		p.Image = image.String
		if err := json.UnmarshalFromString(tagsS, &p.Tags); err != nil {
			return nil, fmt.Errorf("product %s: malformed tags: %w", id, err)
		}

		ps = append(ps, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ps, nil
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		slog.Error("failed to close rows", "op", "storage.closeRows", "err", err)
	}
}

// ProduceCatalog upserts the catalog in one transaction.
func (r CatalogRepository) ProduceCatalog(
	ctx context.Context, c domain.Catalog,
) (storeErr error) {
	const op = "CatalogRepository.ProduceCatalog"
	log := slog.With("op", op)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tx, err := r.sqldb.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to begin tx: %w", op, err)
	}

	defer func() {
		if storeErr == nil {
			if err := tx.Commit(); err != nil {
				storeErr = fmt.Errorf("%s: failed to commit: %w", op, err)
			}
			return
		}

		if err := tx.Rollback(); err != nil {
			log.Error("failed to rollback tx", "err", err)
		}
	}()

	if err := r.storeCategories(ctx, tx, c.Categories); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := r.storeProducts(ctx, tx, c.Products); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("catalog stored", "products", len(c.Products), "categories", len(c.Categories))
	return nil
}

func (r CatalogRepository) storeCategories(
	ctx context.Context, tx *sql.Tx, cs []domain.Category,
) error {
	stmt, err := tx.PrepareContext(ctx, upsertCategory)
	if err != nil {
		return fmt.Errorf("failed to prepare stmt: %w", err)
	}
	defer closeStmt(stmt)

	for i, c := range cs {
		_, err := stmt.ExecContext(ctx, c.ID, c.Name, c.Icon, i)
		if err != nil {
			return fmt.Errorf("failed to exec: %w", err)
		}
	}
	return nil
}

func (r CatalogRepository) storeProducts(
	ctx context.Context, tx *sql.Tx, ps []domain.Product,
) error {
	stmt, err := tx.PrepareContext(ctx, upsertProduct)
	if err != nil {
		return fmt.Errorf("failed to prepare stmt: %w", err)
	}
	defer closeStmt(stmt)

	for i, p := range ps {
		tags := p.Tags
		if tags == nil {
			tags = []string{}
		}
		tagsS, err := json.MarshalToString(tags)
		if err != nil {
			return fmt.Errorf("product %s: %w", p.ID, err)
		}

		var orig decimal.NullDecimal
		if p.OriginalPrice != nil {
			orig = decimal.NewNullDecimal(*p.OriginalPrice)
		}

		_, err = stmt.ExecContext(ctx,
			string(p.ID), p.Title, p.Description, p.Category,
			p.Price, orig, p.Stock, p.Rating, p.ReviewCount,
			p.Featured, tagsS, p.Image, i,
		)
		if err != nil {
			return fmt.Errorf("failed to exec: %w", err)
		}
	}
	return nil
}

func closeStmt(stmt *sql.Stmt) {
	if err := stmt.Close(); err != nil {
		slog.Error("failed to close prepared stmt", "op", "storage.closeStmt", "err", err)
	}
}

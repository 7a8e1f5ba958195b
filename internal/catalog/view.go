package catalog

import (
	"context"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/blackstore/internal/analytics"
	"github.com/vladislavdragonenkov/blackstore/internal/domain"
)

// View — копия каталога в рамках одной сессии. Правки и удаления меняют только
// эту копию и пропадают вместе с сессией.
type View struct {
	source domain.CatalogSource

	mu         sync.Mutex
	loaded     bool
	products   []domain.Product
	categories []string
}

// NewView создаёт пустое представление, которое загрузится при первом обращении.
func NewView(source domain.CatalogSource) *View {
	return &View{source: source}
}

// Snapshot — состояние представления для экрана каталога.
type Snapshot struct {
	Products   []domain.Product
	Categories []string
	// LoadErr заполнен, если каталог не удалось загрузить; список при этом пустой.
	LoadErr error
}

// Load возвращает текущие товары. Если каталог ещё не загружен, делает одну
// попытку загрузки; при ошибке список пуст, а следующий вызов попробует снова.
func (v *View) Load(ctx context.Context) Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.loaded {
		products, err := v.source.Products(ctx)
		if err != nil {
			return Snapshot{Products: []domain.Product{}, Categories: []string{}, LoadErr: err}
		}
		v.products = products
		v.categories = analytics.Categories(products)
		v.loaded = true
	}

	return Snapshot{
		Products:   append([]domain.Product(nil), v.products...),
		Categories: append([]string(nil), v.categories...),
	}
}

// Find возвращает товар из копии сессии.
func (v *View) Find(ctx context.Context, id int64) (domain.Product, error) {
	snapshot := v.Load(ctx)
	if snapshot.LoadErr != nil {
		return domain.Product{}, snapshot.LoadErr
	}
	for _, product := range snapshot.Products {
		if product.ID == id {
			return product, nil
		}
	}
	return domain.Product{}, domain.ErrProductNotFound
}

// Edit меняет название и цену товара в копии сессии. Название сохраняется без
// крайних пробелов и не может быть пустым.
func (v *View) Edit(ctx context.Context, id int64, title string, price decimal.Decimal) (domain.Product, error) {
	title = strings.TrimSpace(title)
	if title == "" || !price.IsPositive() {
		return domain.Product{}, domain.ErrProductEditInvalid
	}
	if snapshot := v.Load(ctx); snapshot.LoadErr != nil {
		return domain.Product{}, snapshot.LoadErr
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	for i := range v.products {
		if v.products[i].ID == id {
			v.products[i].Title = title
			v.products[i].Price = price
			return v.products[i], nil
		}
	}
	return domain.Product{}, domain.ErrProductNotFound
}

// Delete убирает товар из копии сессии. Список категорий не меняется.
func (v *View) Delete(ctx context.Context, id int64) error {
	if snapshot := v.Load(ctx); snapshot.LoadErr != nil {
		return snapshot.LoadErr
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	for i := range v.products {
		if v.products[i].ID == id {
			v.products = append(v.products[:i], v.products[i+1:]...)
			return nil
		}
	}
	return domain.ErrProductNotFound
}

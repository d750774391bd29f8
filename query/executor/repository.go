package executor

import (
	"context"
	"fmt"
	"reflect"

	"github.com/nxtgo/nxt-orm/dialect"
	"github.com/nxtgo/nxt-orm/orm"
	"github.com/nxtgo/nxt-orm/query/sqlgen"
	"github.com/nxtgo/nxt-orm/runtime/client"
)

// Collection is one page of a find.
type Collection[T any] struct {
	NbTotal      int64 `json:"nbTotal"`
	CurrentPage  int   `json:"currentPage"`
	NbPages      int64 `json:"nbPages"`
	ItemsPerPage int   `json:"itemsPerPage"`
	List         []*T  `json:"list"`
}

func newCollection[T any](res result, opts FindOptions) *Collection[T] {
	c := &Collection[T]{NbTotal: res.total, List: make([]*T, 0, len(res.items))}
	if opts.paginated() {
		c.CurrentPage = opts.Page
		c.ItemsPerPage = opts.PerPage
		c.NbPages = (res.total + int64(opts.PerPage) - 1) / int64(opts.PerPage)
	}
	for _, item := range res.items {
		c.List = append(c.List, item.Interface().(*T))
	}
	return c
}

// Repository reads and writes entities of type T. Status codes are reported
// on the entity's Response: 201 after an insert, 200 after an update, 204
// after a delete, 404 for a missing row and 422 for a rejected write.
type Repository[T any] interface {
	Find(ctx context.Context, opts FindOptions) (*Collection[T], error)
	FindByID(ctx context.Context, id int64) (*T, error)
	// FindBy filters on Go field names. Many-to-one fields compare their
	// derived id column.
	FindBy(ctx context.Context, pairs []sqlgen.ColumnValue, opts FindOptions) (*Collection[T], error)
	Insert(ctx context.Context, entity *T) (*T, error)
	Update(ctx context.Context, entity *T) (*T, error)
	Delete(ctx context.Context, entity *T) (*T, error)
}

// RepositoryFactory is the type expected in EntityDescriptor.Repository to
// replace the default repository of T.
type RepositoryFactory[T any] func(*EntityRepository[T]) Repository[T]

// EntityRepository is the default Repository.
type EntityRepository[T any] struct {
	exec *Executor
	desc *orm.EntityDescriptor
}

// NewEntityRepository creates the default repository of T.
func NewEntityRepository[T any](exec *Executor) (*EntityRepository[T], error) {
	desc, err := exec.descriptor(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return nil, err
	}
	return &EntityRepository[T]{exec: exec, desc: desc}, nil
}

// GetRepository returns the repository of T, honouring a RepositoryFactory
// declared on its descriptor.
func GetRepository[T any](conn client.Conn, registry *orm.Registry, validator Validator) (Repository[T], error) {
	repo, err := NewEntityRepository[T](NewExecutor(conn, registry, validator))
	if err != nil {
		return nil, err
	}

	switch factory := repo.desc.Repository.(type) {
	case nil:
		return repo, nil
	case RepositoryFactory[T]:
		return factory(repo), nil
	case func(*EntityRepository[T]) Repository[T]:
		return factory(repo), nil
	default:
		return nil, dialect.NewConfigError("Repository",
			fmt.Sprintf("%s declares a repository of type %T", repo.desc.Table, factory))
	}
}

// Descriptor returns the metadata of T.
func (r *EntityRepository[T]) Descriptor() *orm.EntityDescriptor {
	return r.desc
}

// Find returns the entities matching opts.
func (r *EntityRepository[T]) Find(ctx context.Context, opts FindOptions) (*Collection[T], error) {
	res, err := r.exec.load(ctx, r.desc, opts, make(trail), true)
	if err != nil {
		return nil, err
	}
	return newCollection[T](res, opts), nil
}

// FindByID returns the entity with the given id, or the not-found sentinel.
func (r *EntityRepository[T]) FindByID(ctx context.Context, id int64) (*T, error) {
	found, err := r.exec.findOne(ctx, r.desc, id, make(trail))
	if err != nil {
		return nil, err
	}
	return found.Interface().(*T), nil
}

// FindBy returns the entities whose fields equal the given values.
func (r *EntityRepository[T]) FindBy(ctx context.Context, pairs []sqlgen.ColumnValue, opts FindOptions) (*Collection[T], error) {
	wheres := make([]*sqlgen.Where, 0, len(pairs))
	for _, p := range pairs {
		column, err := r.exec.registry.ColumnName(r.desc, p.Column)
		if err != nil {
			return nil, err
		}
		wheres = append(wheres, sqlgen.NewWhere("?? = ?", rootAlias+"."+column, p.Value))
	}

	res, err := r.exec.load(ctx, r.desc, opts, make(trail), true, wheres...)
	if err != nil {
		return nil, err
	}
	return newCollection[T](res, opts), nil
}

// Insert writes entity and returns it as read back from the database.
func (r *EntityRepository[T]) Insert(ctx context.Context, entity *T) (*T, error) {
	if entity == nil {
		return nil, dialect.NewConfigError("Repository", "cannot insert a nil entity")
	}
	created, err := r.exec.insert(ctx, r.desc, reflect.ValueOf(entity))
	if err != nil {
		return nil, err
	}
	return created.Interface().(*T), nil
}

// Update writes the scalar columns of entity.
func (r *EntityRepository[T]) Update(ctx context.Context, entity *T) (*T, error) {
	if entity == nil {
		return nil, dialect.NewConfigError("Repository", "cannot update a nil entity")
	}
	if err := r.exec.update(ctx, r.desc, reflect.ValueOf(entity)); err != nil {
		return nil, err
	}
	return entity, nil
}

// Delete removes entity. Entities without an id are returned unchanged.
func (r *EntityRepository[T]) Delete(ctx context.Context, entity *T) (*T, error) {
	if entity == nil {
		return nil, dialect.NewConfigError("Repository", "cannot delete a nil entity")
	}
	if err := r.exec.remove(ctx, r.desc, reflect.ValueOf(entity)); err != nil {
		return nil, err
	}
	return entity, nil
}

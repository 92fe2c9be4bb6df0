package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/recipebook/recipebook-server/domain"
)

// RecipeRepository implements domain.RecipeRepository.
type RecipeRepository struct {
	recipes *mongo.Collection
}

func NewRecipeRepository(db *mongo.Database) *RecipeRepository {
	return &RecipeRepository{recipes: db.Collection(RecipesCollection)}
}

func (r *RecipeRepository) CreateRecipe(ctx context.Context, recipe *domain.Recipe) error {
	if recipe.ID == "" {
		recipe.ID = NewObjectID()
	}
	if recipe.CreatedAt.IsZero() {
		recipe.CreatedAt = time.Now().UTC()
	}
	if _, err := r.recipes.InsertOne(ctx, recipe); err != nil {
		return fmt.Errorf("failed to insert recipe: %w", err)
	}
	return nil
}

func (r *RecipeRepository) GetRecipeByID(ctx context.Context, id string) (*domain.Recipe, error) {
	var recipe domain.Recipe
	err := r.recipes.FindOne(ctx, bson.M{"_id": id}).Decode(&recipe)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find recipe: %w", err)
	}
	return &recipe, nil
}

func (r *RecipeRepository) ListRecipes(ctx context.Context) ([]*domain.Recipe, error) {
	cursor, err := r.recipes.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list recipes: %w", err)
	}
	defer cursor.Close(ctx)

	var recipes []*domain.Recipe
	if err := cursor.All(ctx, &recipes); err != nil {
		return nil, fmt.Errorf("failed to decode recipes: %w", err)
	}
	return recipes, nil
}

var _ domain.RecipeRepository = (*RecipeRepository)(nil)

package services

import (
	"context"
	"errors"

	"github.com/recipebook/recipebook-server/domain"
	apperrors "github.com/recipebook/recipebook-server/errors"
)

const teaserIngredientCount = 2

const teaserMessage = "Upgrade to Premium to see the full recipe"

// RecipeView is the caller-facing projection of a recipe. For premium
// recipes shown to non-entitled viewers, Instructions is null and the
// ingredient list is cut down to a teaser.
type RecipeView struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	IsPremium    bool     `json:"isPremium"`
	Image        string   `json:"image,omitempty"`
	Ingredients  []string `json:"ingredients"`
	Instructions *string  `json:"instructions"`
	Teaser       string   `json:"teaser,omitempty"`
}

// RecipeService reads recipes through the access gate and shapes premium
// content for the viewer's entitlement.
type RecipeService struct {
	recipes domain.RecipeRepository
	access  *AccessService
}

func NewRecipeService(recipes domain.RecipeRepository, access *AccessService) *RecipeService {
	return &RecipeService{recipes: recipes, access: access}
}

// List returns all recipes shaped for the viewer. The listing is a
// partial-information view: premium recipes are present for everyone, but a
// non-entitled viewer only gets the teaser.
func (s *RecipeService) List(ctx context.Context, viewer *domain.User) ([]*RecipeView, error) {
	entitled, _ := s.access.CheckPremiumAccess(ctx, viewer)

	recipes, err := s.recipes.ListRecipes(ctx)
	if err != nil {
		return nil, apperrors.NewInternal("failed to list recipes", err)
	}

	views := make([]*RecipeView, 0, len(recipes))
	for _, recipe := range recipes {
		views = append(views, shapeRecipe(recipe, entitled))
	}
	return views, nil
}

// Get returns one recipe in full. Unlike the listing, a premium recipe
// fetched by a non-entitled viewer is a hard deny, not a teaser.
func (s *RecipeService) Get(ctx context.Context, viewer *domain.User, id string) (*domain.Recipe, error) {
	recipe, err := s.recipes.GetRecipeByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, apperrors.NewNotFound("recipe not found")
	}
	if err != nil {
		return nil, apperrors.NewInternal("failed to load recipe", err)
	}

	if recipe.IsPremium {
		if entitled, _ := s.access.CheckPremiumAccess(ctx, viewer); !entitled {
			return nil, apperrors.NewUnauthorized("this recipe is exclusive to Premium users")
		}
	}
	return recipe, nil
}

// Create stores a new recipe. Authorization (admin only) is enforced by the
// route middleware.
func (s *RecipeService) Create(ctx context.Context, creator *domain.User, recipe *domain.Recipe) (*domain.Recipe, error) {
	if recipe.Title == "" || len(recipe.Ingredients) == 0 || recipe.Instructions == "" {
		return nil, apperrors.NewInputInvalid("title, ingredients and instructions are required")
	}
	recipe.CreatedBy = creator.ID
	if err := s.recipes.CreateRecipe(ctx, recipe); err != nil {
		return nil, apperrors.NewInternal("failed to create recipe", err)
	}
	return recipe, nil
}

func shapeRecipe(recipe *domain.Recipe, entitled bool) *RecipeView {
	view := &RecipeView{
		ID:        recipe.ID,
		Title:     recipe.Title,
		IsPremium: recipe.IsPremium,
	}
	if len(recipe.Images) > 0 {
		view.Image = recipe.Images[0]
	}

	if recipe.IsPremium && !entitled {
		ingredients := recipe.Ingredients
		if len(ingredients) > teaserIngredientCount {
			ingredients = ingredients[:teaserIngredientCount]
		}
		view.Ingredients = ingredients
		view.Instructions = nil
		view.Teaser = teaserMessage
		return view
	}

	view.Ingredients = recipe.Ingredients
	instructions := recipe.Instructions
	view.Instructions = &instructions
	return view
}

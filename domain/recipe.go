package domain

import "time"

// Recipe is a content item. Premium recipes are only fully visible to
// entitled viewers; listings show a teaser to everyone else.
type Recipe struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	Title        string    `bson:"title" json:"title"`
	Ingredients  []string  `bson:"ingredients" json:"ingredients"`
	Instructions string    `bson:"instructions" json:"instructions"`
	Images       []string  `bson:"images,omitempty" json:"images,omitempty"`
	IsPremium    bool      `bson:"is_premium" json:"isPremium"`
	CreatedBy    string    `bson:"created_by" json:"createdBy"`
	CreatedAt    time.Time `bson:"created_at" json:"createdAt"`
}

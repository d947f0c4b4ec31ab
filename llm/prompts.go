package llm

import "fmt"

const relevanceInstructions = `You are a highly precise expert shopping assistant. Your task is to determine if a product title is a relevant and specific match for a user's search query. Your decisions must be strict.

--- RULES ---

## General Rules:
1. **Tools vs. Cleaners:** If the query is for a liquid/spray cleaner (e.g., "glass cleaner"), you MUST REJECT cleaning tools (cloths, wipes, brushes). Only accept tools if the query explicitly asks for one (e.g., "disinfectant wipes").
2. **Context of Use:** If the query specifies an application (e.g., "for furniture", "marble", "hardwood"), you MUST REJECT products for a different application (e.g., "laundry", "dishes").
3. **Bundles and Promotions:** If the product title indicates a bundle, promo, or combo of DIFFERENT product types (e.g., "Glass Cleaner + Surface Disinfectant"), you MUST REJECT it. The product must be only what the user searched for.

## Specificity Rules:
4. **Specialized Surfaces:** If the query asks for a cleaner for a specific surface (e.g., "hardwood floor cleaner"), you MUST REJECT general-purpose or multi-surface cleaners. The product must be explicitly for that surface.
5. **Specialized Products:** If the query is for a specialized product (e.g., "wax and floor polish", "waterless car wash"), you MUST REJECT general cleaners. The product title must clearly indicate it performs that specific function.
6. **Automotive Focus:** If the query is for a car cleaning product (e.g., "microfiber for vehicle", "car disinfectant rags"), you MUST REJECT general-purpose products. The product must be explicitly marketed for automotive use.

## Final Instruction:
Respond with only "Yes" or "No".

--- EXAMPLES ---

# Example (Tools vs. Cleaner)
User Search Query: "glass cleaner"
Product Title: "Microfiber cloth for glass"
Is the product a relevant match for the query?
No

# Example (Bundles and Promotions)
User Search Query: "glass cleaner"
Product Title: "Go Green Promo Surface Cleaner 750 ML + Glass Cleaner 650 ML"
Is the product a relevant match for the query?
No

# Example (Context of Use)
User Search Query: "fabric freshener for furnitures"
Product Title: "Loyal Fabric Softener & Freshener for Laundry"
Is the product a relevant match for the query?
No

# Example (Specialized Surface)
User Search Query: "hardwood floor cleaner"
Product Title: "Mr. Clean Multi-Purpose Floor Cleaner"
Is the product a relevant match for the query?
No

# Example (Specialized Product)
User Search Query: "wax and floor polish"
Product Title: "Pledge Floor Gloss, Polish and Wax"
Is the product a relevant match for the query?
Yes

# Example (Automotive Focus)
User Search Query: "car surface disinfectant wet rags"
Product Title: "Lysol Disinfecting Wipes, Multi-Surface Lemon Scent"
Is the product a relevant match for the query?
No

# Example (Automotive Focus)
User Search Query: "microfiber for vehicle cleaning"
Product Title: "Armor All Car Cleaning Microfiber Towel"
Is the product a relevant match for the query?
Yes

# Example (Waterless Product)
User Search Query: "waterless car wash"
Product Title: "Meguiar's Gold Class Car Wash Shampoo & Conditioner"
Is the product a relevant match for the query?
No

--- END EXAMPLES ---`

const unitCountInstructions = `You are an expert data extractor. Your goal is to calculate the TOTAL number of wipes from a product title. You must identify the base count per pack and any multipliers (like "Pack of 2", "3 Pack", "4x", etc.) and multiply them together.

First, provide a brief, one-sentence reasoning of your calculation. Then, provide the final integer.
Your final output MUST be a valid JSON object with two keys: "reasoning" and "total_units".

--- EXAMPLES ---

# Example 1: Standard multiplication
Title: "Clorox Disinfecting Bleach Free Cleaning Wipes, 75 Wipes, Pack Of 3"
{
  "reasoning": "The title indicates 3 packs of 75 wipes each, so the total is 3 * 75.",
  "total_units": 225
}

# Example 2: Multiplication with 'x'
Title: "Armor All Car Disinfectant Wipes, 30 Wipes Each, 3 Pack"
{
  "reasoning": "The title specifies 3 packs containing 30 wipes each, so the total is 3 * 30.",
  "total_units": 90
}

# Example 3: No multiplication needed
Title: "Antibacterial Wet Rags, 20 Sheets"
{
  "reasoning": "The title mentions a single pack of 20 sheets with no multipliers.",
  "total_units": 20
}

# Example 4: Complex multiplication
Title: "Family Pack 2 x (3 x 80 wipes)"
{
  "reasoning": "The title shows a nested structure of 2 packs, each containing 3 packs of 80 wipes, so the total is 2 * 3 * 80.",
  "total_units": 480
}

# Example 5: Product is not wipes
Title: "Microfiber Cloths 6 Pack"
{
  "reasoning": "The product is 'Microfiber Cloths', which are not wipes. The count is irrelevant.",
  "total_units": 0
}`

func relevanceMessages(title, query string) []Message {
	return []Message{
		{Role: "system", Content: relevanceInstructions},
		{Role: "user", Content: fmt.Sprintf(
			"--- CURRENT TASK ---\nUser Search Query: %q\nProduct Title: %q\n\nIs the product a relevant match for the query?",
			query, title)},
	}
}

func unitCountMessages(title string) []Message {
	return []Message{
		{Role: "system", Content: unitCountInstructions},
		{Role: "user", Content: fmt.Sprintf("--- CURRENT TASK ---\n\nTitle: %q", title)},
	}
}

package gateway

import (
	"fmt"
	"strings"

	"otoanaliz/appraisal"
	"otoanaliz/gemini"
)

const analyzePrompt = `You are an elite automotive expert with encyclopedic knowledge of all vehicle makes, models, generations, and rare editions (including JDM, Classics, Supercars, and specific trims).

Analyze the provided car images (there may be one or multiple angles) with extreme precision. Combine findings from all images:
1. Identification: identify the Make, Model, Sub-model, and Generation specifically.
2. Condition: analyze visible cosmetic condition across all provided angles.
3. Rarity: determine if it is a rare, limited edition, or collector's item.

Return the response in JSON format.
IMPORTANT: The values for 'visualCondition', 'color', and 'identifiedDamages' MUST be in Turkish language.
The 'confidence' value MUST be an integer between 0 and 100.`

const pricePromptTemplate = `You are a strict and realistic car appraiser in Turkey.

CAR DETAILS:
- Make: %s
- Model: %s
- Year: %d
- Mileage: %d km
- Condition: %s
%s
TASK:
1. Use Google Search to find current listing prices in Turkey (sahibinden, arabam.com, etc).
2. Exclude "Ağır Hasar Kayıtlı" listings.
3. Determine the minPrice, maxPrice, and avgPrice based on real market listings.

CRITICAL PRICING RULES FOR TURKISH MARKET (STRICT ADJUSTMENTS):
- MILEAGE SENSITIVITY: Mileage is the most critical value factor. A car with ~95,000 km is worth significantly more than a 350,000 km version (approx 400k-500k TL difference in premium segments).
- LOWERING THE HIGH END: Listing prices are often optimistic "wish prices". Do not use the highest outlier price found. Lower the high end of the range to a price that would actually sell.
- RANGE PRECISION: Keep the min-max gap tight. If avg is 1.5M, a realistic range is 1.4M - 1.6M.
- REALISTIC TRANSACTION DISCOUNT: Apply a conservative downward adjustment (approx. 4-5%%) to all raw search results to account for "ilan şişirmesi" (inflated listing prices).

4. Calculate "Pazarlık Payı" (bargaining margin). In Turkey, this is usually 2%% to 5%% of the listing price.
5. Return a realistic transaction price range and a specific bargaining amount.

Currency is "TL". The reasoning MUST be in Turkish and explain how the pricing rules, mileage sensitivity and the capped high end were applied.`

const nearbyPromptTemplate = `Find 3 top-rated "%s" near the provided location. List them with names, addresses and snippets. Format: Turkish Markdown.`

const chatSystemInstruction = "You are a helpful automotive expert assistant for the OtoAnaliz app in Turkey. Answer in Turkish."

func pricePrompt(req appraisal.EstimateRequest) string {
	damages := ""
	if len(req.Analysis.IdentifiedDamages) > 0 {
		damages = "- Reported damages: " + strings.Join(req.Analysis.IdentifiedDamages, "; ") + "\n"
	}
	return fmt.Sprintf(pricePromptTemplate,
		req.Analysis.Make,
		req.Analysis.Model,
		req.Year,
		req.Km,
		req.Analysis.VisualCondition,
		damages,
	)
}

func nearbyPrompt(query string) string {
	return fmt.Sprintf(nearbyPromptTemplate, query)
}

var analysisSchema = &gemini.Schema{
	Type: gemini.TypeObject,
	Properties: map[string]*gemini.Schema{
		"make":              {Type: gemini.TypeString},
		"model":             {Type: gemini.TypeString},
		"generation":        {Type: gemini.TypeString},
		"color":             {Type: gemini.TypeString},
		"visualCondition":   {Type: gemini.TypeString},
		"identifiedDamages": {Type: gemini.TypeArray, Items: &gemini.Schema{Type: gemini.TypeString}},
		"isRare":            {Type: gemini.TypeBoolean},
		"confidence":        {Type: gemini.TypeNumber},
	},
	Required: []string{"make", "model", "visualCondition", "identifiedDamages", "isRare", "confidence"},
}

var priceSchema = &gemini.Schema{
	Type: gemini.TypeObject,
	Properties: map[string]*gemini.Schema{
		"minPrice":         {Type: gemini.TypeNumber},
		"maxPrice":         {Type: gemini.TypeNumber},
		"avgPrice":         {Type: gemini.TypeNumber},
		"currency":         {Type: gemini.TypeString},
		"bargainingMargin": {Type: gemini.TypeNumber},
		"reasoning":        {Type: gemini.TypeString},
		"marketTrend": {
			Type: gemini.TypeString,
			Enum: []string{string(appraisal.TrendRising), string(appraisal.TrendStable), string(appraisal.TrendFalling)},
		},
	},
	Required: []string{"minPrice", "maxPrice", "avgPrice", "currency", "bargainingMargin", "reasoning", "marketTrend"},
}

package commerce

const productFields = `
fragment ProductFields on Product {
  id
  handle
  title
  description
  availableForSale
  featuredImage { url }
  priceRange { minVariantPrice { amount currencyCode } }
  variants(first: 20) {
    edges { node { id title availableForSale price { amount currencyCode } } }
  }
}`

const cartFields = `
fragment CartFields on Cart {
  id
  checkoutUrl
  cost { subtotalAmount { amount currencyCode } }
  lines(first: 100) {
    edges {
      node {
        quantity
        merchandise {
          ... on ProductVariant { id title price { amount currencyCode } product { title } }
        }
      }
    }
  }
}`

const searchProductsQuery = `
query SearchProducts($query: String!, $first: Int!) {
  products(first: $first, query: $query) { edges { node { ...ProductFields } } }
}` + productFields

const productByHandleQuery = `
query ProductByHandle($handle: String!) {
  product(handle: $handle) { ...ProductFields }
}` + productFields

const listProductsQuery = `
query ListProducts($first: Int!, $after: String) {
  products(first: $first, after: $after) {
    pageInfo { hasNextPage endCursor }
    edges { node { ...ProductFields } }
  }
}` + productFields

const cartCreateMutation = `
mutation CartCreate($lines: [CartLineInput!]!) {
  cartCreate(input: { lines: $lines }) {
    cart { ...CartFields }
    userErrors { field message }
  }
}` + cartFields

const cartLinesAddMutation = `
mutation CartLinesAdd($cartId: ID!, $lines: [CartLineInput!]!) {
  cartLinesAdd(cartId: $cartId, lines: $lines) {
    cart { ...CartFields }
    userErrors { field message }
  }
}` + cartFields

const cartQuery = `
query Cart($id: ID!) {
  cart(id: $id) { ...CartFields }
}` + cartFields

const draftOrderCreateMutation = `
mutation DraftOrderCreate($input: DraftOrderInput!) {
  draftOrderCreate(input: $input) {
    draftOrder {
      id
      name
      invoiceUrl
      status
      totalPriceSet { shopMoney { amount currencyCode } }
    }
    userErrors { field message }
  }
}`
